package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIToken = "CAIBER_API_TOKEN"
	EnvBaseURL  = "CAIBER_BASE_URL"
)

// DefaultEnvFile is loaded when present and no explicit file is given.
const DefaultEnvFile = ".env"

// LoadEnv populates the process environment from a .env file. Variables
// already set in the environment are left alone. A missing default file is
// not an error; a missing explicit file is.
func LoadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv copies supported environment variables into c.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
}
