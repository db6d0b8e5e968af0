package config

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is used for XDG directory names.
	AppName = "caiber"

	// DefaultBaseURL is where the collaborator backend listens in a local
	// development setup.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultStageTimeout bounds a single remote stage. Threat collection
	// fans out to several public feeds and is the slowest stage in practice.
	DefaultStageTimeout = 5 * time.Minute

	// DefaultListenAddress is the bind address of `caiber serve`.
	DefaultListenAddress = "127.0.0.1:8080"

	// DefaultValkeyChannel is the PUBLISH channel for pipeline events.
	DefaultValkeyChannel = "caiber:events"

	// DefaultMaxBodySize limits how much of a stage response is read.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// FallbackNone never substitutes stage output.
	FallbackNone = "none"

	// FallbackDemo substitutes bundled demo data when a stage fails with a
	// network or server error.
	FallbackDemo = "demo"
)

// Endpoint overrides the HTTP method and path used for one stage.
type Endpoint struct {
	Method string `yaml:"method,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

// Config holds every option of a caiber invocation. It is built once by the
// CLI and passed down explicitly.
type Config struct {
	// BaseURL is the collaborator backend, e.g. http://localhost:8000.
	BaseURL string

	// APIToken is sent as a bearer token when set. Read from the environment only.
	APIToken string

	// StageTimeout bounds each stage. Zero disables the timeout.
	StageTimeout time.Duration

	// ProxyAddress routes backend traffic through a SOCKS5 proxy (host:port).
	ProxyAddress string

	// Fallback is FallbackNone or FallbackDemo.
	Fallback string

	// Endpoints maps stage ids to endpoint overrides.
	Endpoints map[string]Endpoint

	// MaxBodySize limits stage response bodies. Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// SessionID identifies the uploaded document the run analyses.
	SessionID string

	Verbose bool

	// JSONReport and MarkdownReport select the report format; text when neither is set.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir holds the run history database.
	DBDir string

	// SaveToDB archives finished runs in DBDir.
	SaveToDB bool

	// ListenAddress is the bind address of the HTTP control API.
	ListenAddress string

	// ValkeyAddress enables publishing pipeline events to Valkey when set.
	ValkeyAddress string
	ValkeyChannel string

	// ConfigFilePath is an explicit config file; empty means search.
	ConfigFilePath string

	// EnvFile is an explicit .env file; empty means ".env" when present.
	EnvFile string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		BaseURL:       DefaultBaseURL,
		StageTimeout:  DefaultStageTimeout,
		Fallback:      FallbackNone,
		Endpoints:     map[string]Endpoint{},
		MaxBodySize:   DefaultMaxBodySize,
		DBDir:         XDGDataDir(),
		SaveToDB:      true,
		ListenAddress: DefaultListenAddress,
		ValkeyChannel: DefaultValkeyChannel,
	}
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/caiber on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory, e.g. ~/.config/caiber on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the options shared by every command and returns the first
// problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}
	if c.StageTimeout < 0 {
		return ErrInvalidStageTimeout
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Fallback != FallbackNone && c.Fallback != FallbackDemo {
		return ErrInvalidFallback
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	for stage, ep := range c.Endpoints {
		if err := ep.validate(); err != nil {
			return fmt.Errorf("%w for %s: %w", ErrInvalidEndpoint, stage, err)
		}
	}
	return nil
}

// ValidateForRun is Validate plus the requirements of a single pipeline run.
func (c *Config) ValidateForRun() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return ErrNoSession
	}
	return c.Validate()
}

func (e Endpoint) validate() error {
	switch strings.ToUpper(e.Method) {
	case "", http.MethodGet, http.MethodPost, http.MethodPut:
	default:
		return fmt.Errorf("unsupported method %q", e.Method)
	}
	if e.Path != "" && !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("path %q must start with /", e.Path)
	}
	return nil
}
