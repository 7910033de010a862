package importer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/api/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEML = "From: dana@example.com\r\n" +
	"Subject: App crashes on start\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"The desktop app crashes when I open it.\r\n"

type progressLog struct {
	mu     sync.Mutex
	events []Progress
}

func (p *progressLog) record(ev Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *progressLog) stages() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := map[string]int{}
	for _, ev := range p.events {
		counts[ev.Stage]++
	}
	return counts
}

type failingUploader struct{}

func (failingUploader) UploadJSON(ctx context.Context, files []api.UploadFile) (*api.BatchUploadResponse, error) {
	return nil, errors.New("connection refused")
}

func TestPrepareConvertsEMLAndKeepsOrder(t *testing.T) {
	sources := []Source{
		BytesSource("first.json", []byte(`{"from_address":"a@example.com","subject":"A","body":"x"}`)),
		BytesSource("second.eml", []byte(sampleEML)),
		BytesSource("third.txt", []byte("plain")),
	}

	prepared, err := New(false).WithConcurrency(3).Prepare(context.Background(), sources, nil)
	require.NoError(t, err)

	require.Len(t, prepared.Files, 3)
	assert.Equal(t, "first.json", prepared.Files[0].Name)
	assert.Equal(t, "second.json", prepared.Files[1].Name)
	assert.Equal(t, "third.txt", prepared.Files[2].Name, "Unknown files are left for the API to reject")
	assert.Equal(t, 1, prepared.Converted)
	assert.Empty(t, prepared.Failed)

	var converted api.EmailCreate
	require.NoError(t, json.Unmarshal(prepared.Files[1].Data, &converted))
	assert.Equal(t, "dana@example.com", converted.FromAddress)
	assert.Equal(t, "App crashes on start", converted.Subject)
	assert.Equal(t, "The desktop app crashes when I open it.", converted.Body)
}

func TestPrepareReportsUnreadableFiles(t *testing.T) {
	sources := []Source{
		FileSource("gone.json", filepath.Join(t.TempDir(), "gone.json")),
		BytesSource("ok.json", []byte(`{}`)),
	}

	prepared, err := New(false).Prepare(context.Background(), sources, nil)
	require.NoError(t, err)

	require.Len(t, prepared.Failed, 1)
	assert.Equal(t, "gone.json", prepared.Failed[0].File)
	assert.Contains(t, prepared.Failed[0].Error, "failed to read file")
	require.Len(t, prepared.Files, 1)
	assert.Equal(t, "ok.json", prepared.Files[0].Name)
}

func TestPrepareReportsProgress(t *testing.T) {
	var sources []Source
	for i := 0; i < 12; i++ {
		sources = append(sources, BytesSource("f.json", []byte("{}")))
	}

	events := &progressLog{}
	_, err := New(false).WithConcurrency(0).Prepare(context.Background(), sources, events.record)
	require.NoError(t, err)

	require.Len(t, events.events, 12)
	last := events.events[len(events.events)-1]
	assert.Equal(t, Progress{Stage: StagePreparing, Current: 12, Total: 12, File: "f.json"}, last)
}

func TestPrepareCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(false).Prepare(ctx, []Source{BytesSource("a.json", nil)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

// A failed batch must report every failure while keeping the successes
func TestRunMergesLocalFailures(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	client := api.NewClient(srv.URL)

	sources := []Source{
		BytesSource("batch.json", []byte(`[
			{"from_address":"a@example.com","subject":"A","body":"one"},
			{"from_address":"b@example.com","subject":"B","body":""}
		]`)),
		BytesSource("mail.eml", []byte(sampleEML)),
		BytesSource("readme.md", []byte("# hi")),
		FileSource("missing.eml", filepath.Join(t.TempDir(), "missing.eml")),
	}

	events := &progressLog{}
	resp, err := New(false).Run(context.Background(), client, sources, events.record)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.SuccessCount)
	assert.Equal(t, 3, resp.FailedCount)
	assert.Equal(t, 5, resp.TotalCount)
	assert.Equal(t, "Processed 4 files: 2 emails succeeded, 3 failed", resp.Message)
	assert.Len(t, srv.Emails(), 2, "Successful emails must be stored")

	assert.Equal(t, []string{"batch.json", "mail.json", "readme.md"}, srv.LastRequest().Files)

	stages := events.stages()
	assert.Equal(t, 4, stages[StagePreparing])
	assert.Equal(t, 1, stages[StageUploading])
}

func TestRunAllLocalFailuresSkipsUpload(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	resp, err := New(false).Run(context.Background(), api.NewClient(srv.URL), []Source{
		FileSource("a.json", filepath.Join(t.TempDir(), "a.json")),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, resp.SuccessCount)
	assert.Equal(t, 1, resp.FailedCount)
	assert.Equal(t, 1, resp.TotalCount)
	assert.Empty(t, srv.Requests(), "API should not be called")
}

func TestRunNoSources(t *testing.T) {
	_, err := New(false).Run(context.Background(), failingUploader{}, nil, nil)
	assert.ErrorIs(t, err, api.ErrNoFiles)
}

func TestRunUploadError(t *testing.T) {
	_, err := New(false).Run(context.Background(), failingUploader{}, []Source{BytesSource("a.json", []byte("{}"))}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSourcesFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.eml"), []byte(sampleEML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte(`x`), 0644))

	sources, err := SourcesFromDir(dir)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "a.json", sources[0].Name)
	assert.Equal(t, "b.eml", sources[1].Name)

	data, err := sources[1].Load()
	require.NoError(t, err)
	assert.Equal(t, sampleEML, string(data))
}

func TestSourcesFromPaths(t *testing.T) {
	sources := SourcesFromPaths([]string{"/tmp/x/one.json", "two.eml"})
	require.Len(t, sources, 2)
	assert.Equal(t, "one.json", sources[0].Name)
	assert.Equal(t, "two.eml", sources[1].Name)
}
