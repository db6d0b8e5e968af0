package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name searched for in the current
// and home directories.
const DefaultConfigFile = ".caiber"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML layout of the .caiber configuration file. Zero values
// leave the corresponding Config field untouched.
type File struct {
	BaseURL      string              `yaml:"base_url,omitempty"`
	StageTimeout time.Duration       `yaml:"stage_timeout,omitempty"`
	Proxy        string              `yaml:"proxy,omitempty"`
	Fallback     string              `yaml:"fallback,omitempty"`
	MaxBodySize  int64               `yaml:"max_body_size,omitempty"`
	Listen       string              `yaml:"listen,omitempty"`
	Endpoints    map[string]Endpoint `yaml:"endpoints,omitempty"`
	Database     DatabaseFile        `yaml:"database,omitempty"`
	Valkey       ValkeyFile          `yaml:"valkey,omitempty"`
}

// DatabaseFile configures the run history archive.
type DatabaseFile struct {
	Dir      string `yaml:"dir,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// ValkeyFile configures the Valkey event publisher.
type ValkeyFile struct {
	Address string `yaml:"address,omitempty"`
	Channel string `yaml:"channel,omitempty"`
}

// LoadConfigFile reads and parses a config file. A missing file yields
// ErrConfigNotFound so callers can decide whether that matters.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Endpoints == nil {
		f.Endpoints = make(map[string]Endpoint)
	}
	return &f, nil
}

// FindConfigFile returns the config file to use, or "" when there is none.
// An explicit path wins; otherwise .caiber is looked up in the current
// directory and then in the home directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ApplyFile copies the non-zero values of f into c.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	if f.BaseURL != "" {
		c.BaseURL = f.BaseURL
	}
	if f.StageTimeout != 0 {
		c.StageTimeout = f.StageTimeout
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if f.Fallback != "" {
		c.Fallback = f.Fallback
	}
	if f.MaxBodySize != 0 {
		c.MaxBodySize = f.MaxBodySize
	}
	if f.Listen != "" {
		c.ListenAddress = f.Listen
	}
	if c.Endpoints == nil {
		c.Endpoints = make(map[string]Endpoint, len(f.Endpoints))
	}
	for stage, ep := range f.Endpoints {
		c.Endpoints[stage] = ep
	}
	if f.Database.Dir != "" {
		c.DBDir = f.Database.Dir
	}
	if f.Database.Disabled {
		c.SaveToDB = false
	}
	if f.Valkey.Address != "" {
		c.ValkeyAddress = f.Valkey.Address
	}
	if f.Valkey.Channel != "" {
		c.ValkeyChannel = f.Valkey.Channel
	}
}
