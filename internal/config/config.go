package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CONSOLE_API_URL
const EnvPrefix = "CONSOLE"

// Keys understood by Load
const (
	KeyHost            = "server.host"
	KeyPort            = "server.port"
	KeyOpenBrowser     = "server.open_browser"
	KeyDBPath          = "db.path"
	KeyImportPath      = "import.dir"
	KeyAPIURL          = "api.url"
	KeyAPITimeout      = "api.timeout"
	KeyDisplayTimezone = "display.timezone"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
)

// Config holds application configuration
type Config struct {
	// Server settings
	Host        string
	Port        string
	OpenBrowser bool

	// Preference store
	DBPath string

	// Folder offered by the "Import folder" action
	ImportPath string

	// Classifier API
	APIURL     string
	APITimeout time.Duration

	// Zone used to render received_at; empty means the machine's local zone
	DisplayTimezone string

	LogLevel  string
	LogFormat string
}

// Default returns default configuration
func Default() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	// Use ~/.classifier-console for data directory
	dataDir := filepath.Join(homeDir, ".classifier-console")

	apiURL := "http://localhost:8002"
	if v := os.Getenv("REACT_APP_API_URL"); v != "" {
		apiURL = v
	}

	return &Config{
		Host:       "localhost",
		Port:       "8080",
		DBPath:     filepath.Join(dataDir, "console.db"),
		ImportPath: "./emails",
		APIURL:     apiURL,
		APITimeout: 30 * time.Second,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// SetDefaults registers Default() values on v
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyHost, d.Host)
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyOpenBrowser, d.OpenBrowser)
	v.SetDefault(KeyDBPath, d.DBPath)
	v.SetDefault(KeyImportPath, d.ImportPath)
	v.SetDefault(KeyAPIURL, d.APIURL)
	v.SetDefault(KeyAPITimeout, d.APITimeout)
	v.SetDefault(KeyDisplayTimezone, d.DisplayTimezone)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
}

// NewViper returns a viper instance with defaults and CONSOLE_* env binding
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a YAML config file into v. An empty path searches for
// console.yaml in the working directory and the data directory; a missing
// file is not an error in that case.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	v.SetConfigName("console")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".classifier-console"))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load builds a Config from v and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:            v.GetString(KeyHost),
		Port:            v.GetString(KeyPort),
		OpenBrowser:     v.GetBool(KeyOpenBrowser),
		DBPath:          v.GetString(KeyDBPath),
		ImportPath:      v.GetString(KeyImportPath),
		APIURL:          strings.TrimRight(v.GetString(KeyAPIURL), "/"),
		APITimeout:      v.GetDuration(KeyAPITimeout),
		DisplayTimezone: v.GetString(KeyDisplayTimezone),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFormat:       v.GetString(KeyLogFormat),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api.url must not be empty")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api.url must start with http:// or https://, got %q", c.APIURL)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Location returns the display time zone
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTimezone == "" || strings.EqualFold(c.DisplayTimezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid display.timezone %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// URL returns the full server URL
func (c *Config) URL() string {
	return "http://" + c.Address()
}
