// Package app wires the console's command line: the web console itself and
// one-shot commands that talk to the classifier API directly.
package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/felo/classifier-console/internal/api"
	"github.com/felo/classifier-console/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state shared by every command of one invocation
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// NewRootCmd builds the command tree with a fresh viper instance
func NewRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "classifier-console",
		Short:         "Email Classifier System console",
		Long:          "Submit, upload and review emails classified by the email classifier API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	d := config.Default()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default: ./console.yaml or ~/.classifier-console/console.yaml)")
	flags.String(config.KeyAPIURL, d.APIURL, "Classifier API base URL")
	flags.Duration(config.KeyAPITimeout, d.APITimeout, "Timeout for each API call")
	flags.String(config.KeyLogLevel, d.LogLevel, "Log level: debug, info, warn, error")
	flags.String(config.KeyLogFormat, d.LogFormat, "Log format: text or json")

	// Bind flags to viper
	for _, key := range []string{config.KeyAPIURL, config.KeyAPITimeout, config.KeyLogLevel, config.KeyLogFormat} {
		a.v.BindPFlag(key, flags.Lookup(key))
	}

	rootCmd.AddCommand(
		a.newServeCmd(),
		a.newListCmd(),
		a.newGetCmd(),
		a.newSubmitCmd(),
		a.newUploadCmd(),
		a.newImportCmd(),
		a.newClearCmd(),
		a.newHealthCmd(),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := setupLogging(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		return err
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		log.WithField("file", used).Debug("Using config file")
	}
	return nil
}

func (a *app) client() *api.Client {
	return api.NewClient(a.cfg.APIURL, api.WithTimeout(a.cfg.APITimeout))
}

// setupLogging configures the global logrus logger
func setupLogging(level, format string, out io.Writer) error {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log.level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetOutput(out)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
