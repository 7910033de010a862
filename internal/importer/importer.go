package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/parser"
	"github.com/felo/classifier-console/internal/scanner"
	log "github.com/sirupsen/logrus"
)

// Progress stages
const (
	StagePreparing = "preparing"
	StageUploading = "uploading"
)

// DefaultConcurrency bounds the number of files prepared at once
const DefaultConcurrency = 4

// Source is one file offered for upload
type Source struct {
	Name string
	Load func() ([]byte, error)
}

// BytesSource wraps data already in memory
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Load: func() ([]byte, error) { return data, nil },
	}
}

// FileSource reads path lazily, reporting it under name
func FileSource(name, path string) Source {
	return Source{
		Name: name,
		Load: func() ([]byte, error) { return os.ReadFile(path) },
	}
}

// Progress describes how far an import has gone
type Progress struct {
	Stage   string `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	File    string `json:"file"`
}

// ProgressFunc receives progress updates; it may be nil
type ProgressFunc func(Progress)

// Uploader is the part of the API client the importer needs
type Uploader interface {
	UploadJSON(ctx context.Context, files []api.UploadFile) (*api.BatchUploadResponse, error)
}

// Prepared holds the files ready to upload and the ones rejected locally
type Prepared struct {
	Files     []api.UploadFile
	Failed    []api.FailedEmail
	Converted int
}

// Importer turns files into upload parts and sends them in one batch
type Importer struct {
	concurrency int
	verbose     bool
}

// New creates an importer
func New(verbose bool) *Importer {
	return &Importer{
		concurrency: DefaultConcurrency,
		verbose:     verbose,
	}
}

// WithConcurrency sets the number of concurrent workers
func (imp *Importer) WithConcurrency(workers int) *Importer {
	if workers < 1 {
		workers = 1
	}
	imp.concurrency = workers
	return imp
}

// SourcesFromDir lists uploadable files under dir
func SourcesFromDir(dir string) ([]Source, error) {
	sc := scanner.NewScanner(dir)
	files, err := sc.Scan()
	if err != nil {
		return nil, err
	}

	sources := make([]Source, 0, len(files))
	for _, rel := range files {
		sources = append(sources, FileSource(rel, sc.Resolve(rel)))
	}
	return sources, nil
}

// SourcesFromPaths wraps explicit file paths, named by their base name
func SourcesFromPaths(paths []string) []Source {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, FileSource(filepath.Base(p), p))
	}
	return sources
}

type slot struct {
	file      *api.UploadFile
	failure   *api.FailedEmail
	converted bool
}

// Prepare converts sources concurrently, keeping input order.
// .json files pass through; .eml files are parsed and re-encoded as JSON;
// anything else passes through so the API can reject it.
func (imp *Importer) Prepare(ctx context.Context, sources []Source, progress ProgressFunc) (*Prepared, error) {
	slots := make([]slot, len(sources))
	total := len(sources)

	workers := imp.concurrency
	if workers > total {
		workers = total
	}

	jobs := make(chan int)
	done := make(chan string)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				slots[idx] = prepareOne(sources[idx])
				done <- sources[idx].Name
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range sources {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	processed := 0
	for name := range done {
		processed++
		if progress != nil {
			progress(Progress{Stage: StagePreparing, Current: processed, Total: total, File: name})
		}
		if imp.verbose && processed%10 == 0 {
			log.Printf("Prepared %d/%d files", processed, total)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("import cancelled: %w", err)
	}

	prepared := &Prepared{}
	for _, s := range slots {
		switch {
		case s.failure != nil:
			prepared.Failed = append(prepared.Failed, *s.failure)
		case s.file != nil:
			prepared.Files = append(prepared.Files, *s.file)
			if s.converted {
				prepared.Converted++
			}
		}
	}
	return prepared, nil
}

func prepareOne(src Source) slot {
	data, err := src.Load()
	if err != nil {
		log.WithError(err).WithField("file", src.Name).Warn("Failed to read upload source")
		return slot{failure: &api.FailedEmail{File: src.Name, Error: fmt.Sprintf("failed to read file: %v", err)}}
	}

	if strings.ToLower(filepath.Ext(src.Name)) != ".eml" {
		return slot{file: &api.UploadFile{Name: src.Name, Data: data}}
	}

	parsed, err := parser.ParseEML(bytes.NewReader(data))
	if err != nil {
		log.WithError(err).WithField("file", src.Name).Warn("Failed to parse .eml upload")
		return slot{failure: &api.FailedEmail{File: src.Name, Error: fmt.Sprintf("failed to parse email: %v", err)}}
	}

	payload, err := json.Marshal(parsed.ToEmailCreate())
	if err != nil {
		return slot{failure: &api.FailedEmail{File: src.Name, Error: fmt.Sprintf("failed to encode email: %v", err)}}
	}

	name := strings.TrimSuffix(src.Name, filepath.Ext(src.Name)) + ".json"
	return slot{file: &api.UploadFile{Name: name, Data: payload}, converted: true}
}

// Run prepares sources and uploads them in a single request. Local
// failures are merged into the API's response so successes are kept.
func (imp *Importer) Run(ctx context.Context, up Uploader, sources []Source, progress ProgressFunc) (*api.BatchUploadResponse, error) {
	if len(sources) == 0 {
		return nil, api.ErrNoFiles
	}

	prepared, err := imp.Prepare(ctx, sources, progress)
	if err != nil {
		return nil, err
	}

	if len(prepared.Files) == 0 {
		resp := &api.BatchUploadResponse{FailedEmails: []api.FailedEmail{}}
		resp.Merge(prepared.Failed, len(sources))
		return resp, nil
	}

	if progress != nil {
		progress(Progress{Stage: StageUploading, Current: len(prepared.Files), Total: len(sources)})
	}

	resp, err := up.UploadJSON(ctx, prepared.Files)
	if err != nil {
		return nil, err
	}
	resp.Merge(prepared.Failed, len(sources))

	if imp.verbose {
		log.Printf("Upload complete: %d succeeded, %d failed (%d .eml converted)",
			resp.SuccessCount, resp.FailedCount, prepared.Converted)
	}
	return resp, nil
}
