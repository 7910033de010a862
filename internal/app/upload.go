package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/importer"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrAllFailed is returned when a batch uploaded nothing
var ErrAllFailed = errors.New("every email in the batch failed")

func (a *app) newUploadCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload .json or .eml files in one batch",
		Long: "Uploads the given files in a single batch. .eml files are converted to JSON first; " +
			"other files are sent as-is and reported by the API if it rejects them.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, importer.SourcesFromPaths(args), workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", importer.DefaultConcurrency, "Files prepared concurrently")
	return cmd
}

func (a *app) newImportCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "import [dir]",
		Short: "Upload every .json and .eml file under a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.ImportPath
			if len(args) == 1 {
				dir = args[0]
			}

			sources, err := importer.SourcesFromDir(dir)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no .json or .eml files found in %s", dir)
			}
			log.WithFields(log.Fields{"dir": dir, "files": len(sources)}).Info("Importing folder")

			return a.runBatch(cmd, sources, workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", importer.DefaultConcurrency, "Files prepared concurrently")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, sources []importer.Source, workers int) error {
	imp := importer.New(false).WithConcurrency(workers)

	progress := func(p importer.Progress) {
		log.WithFields(log.Fields{
			"stage":   p.Stage,
			"current": p.Current,
			"total":   p.Total,
			"file":    p.File,
		}).Debug("Upload progress")
	}

	result, err := imp.Run(cmd.Context(), a.client(), sources, progress)
	if err != nil {
		return fmt.Errorf("failed to upload files: %w", err)
	}

	printBatch(cmd.OutOrStdout(), result)
	if result.SuccessCount == 0 && result.FailedCount > 0 {
		return ErrAllFailed
	}
	return nil
}

func printBatch(out io.Writer, result *api.BatchUploadResponse) {
	fmt.Fprintln(out, result.Message)
	fmt.Fprintf(out, "Succeeded: %d\nFailed: %d\nTotal: %d\n",
		result.SuccessCount, result.FailedCount, result.TotalCount)

	if len(result.FailedEmails) == 0 {
		return
	}
	fmt.Fprintln(out, "\nFailures:")
	for _, f := range result.FailedEmails {
		fmt.Fprintf(out, "  %s: %s\n", f.Source(), f.Error)
	}
}

func (a *app) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the classifier API answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.client().Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("classifier API at %s is unreachable: %w", a.cfg.APIURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.cfg.APIURL, status.Status)
			return nil
		},
	}
}
