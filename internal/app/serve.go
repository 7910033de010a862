package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/config"
	"github.com/felo/classifier-console/internal/db"
	"github.com/felo/classifier-console/internal/handlers"
	"github.com/felo/classifier-console/internal/metrics"
	"github.com/felo/classifier-console/web"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web console",
		Long:  "Serves the console UI, which lists, submits, uploads and clears emails through the classifier API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}

	d := config.Default()
	flags := cmd.Flags()
	flags.String("host", d.Host, "Address to listen on")
	flags.String("port", d.Port, "Port to listen on")
	flags.Bool("open", d.OpenBrowser, "Open the console in the default browser")
	flags.String("import-dir", d.ImportPath, "Folder used by the Import folder action")
	flags.String("db-path", d.DBPath, "SQLite file holding UI preferences")
	flags.String("timezone", d.DisplayTimezone, "Zone used to show received dates (default: local)")

	a.v.BindPFlag(config.KeyHost, flags.Lookup("host"))
	a.v.BindPFlag(config.KeyPort, flags.Lookup("port"))
	a.v.BindPFlag(config.KeyOpenBrowser, flags.Lookup("open"))
	a.v.BindPFlag(config.KeyImportPath, flags.Lookup("import-dir"))
	a.v.BindPFlag(config.KeyDBPath, flags.Lookup("db-path"))
	a.v.BindPFlag(config.KeyDisplayTimezone, flags.Lookup("timezone"))

	return cmd
}

func (a *app) serve() error {
	cfg := a.cfg

	// Open preference store
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Printf("Database opened at: %s", cfg.DBPath)

	// Check if import directory exists
	if _, err := os.Stat(cfg.ImportPath); os.IsNotExist(err) {
		log.Printf("Import directory not found: %s", cfg.ImportPath)
		if err := os.MkdirAll(cfg.ImportPath, 0755); err != nil {
			log.WithError(err).Warn("Failed to create import directory")
		} else {
			log.Printf("Created import directory at: %s", cfg.ImportPath)
		}
	}

	m := metrics.New()
	client := api.NewClient(cfg.APIURL, api.WithTimeout(cfg.APITimeout), api.WithRecorder(m))

	// Startup probe only; the console runs without the API
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 3*time.Second)
	if _, err := client.Health(probeCtx); err != nil {
		log.WithError(err).Warnf("Classifier API at %s is not reachable yet", cfg.APIURL)
	} else {
		log.Printf("Classifier API at %s is healthy", cfg.APIURL)
	}
	cancelProbe()

	// Create shutdown signal channel
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize handlers with embedded templates
	h := handlers.New(client, database, cfg)
	h.SetMetrics(m)
	h.SetShutdownChannel(sigChan)
	if err := h.LoadTemplates(web.Assets); err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	router, err := handlers.NewRouter(h, web.Assets, m)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // Increased for SSE connections
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", cfg.URL())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	if cfg.OpenBrowser {
		time.Sleep(500 * time.Millisecond) // Give server time to start
		if err := openBrowser(cfg.URL()); err != nil {
			log.Printf("Failed to open browser: %v", err)
			log.Printf("Please open your browser and navigate to: %s", cfg.URL())
		} else {
			log.Printf("Browser opened at: %s", cfg.URL())
		}
	}

	// Wait for interrupt signal or a listen failure
	select {
	case <-sigChan:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
	log.Println("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	return nil
}

// openBrowser opens the default browser to the specified URL
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}
