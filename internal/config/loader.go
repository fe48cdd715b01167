package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched for by FindConfigFile.
const DefaultConfigFile = ".ebcrawl"

// DefaultEnvFile is the dotenv file read by LoadEnv.
const DefaultEnvFile = ".env"

// Environment variables recognized by LoadEnv.
const (
	EnvCookie    = "EBCRAWL_COOKIE"
	EnvProxy     = "EBCRAWL_PROXY"
	EnvUserAgent = "EBCRAWL_USER_AGENT"
	EnvDBDir     = "EBCRAWL_DB_DIR"
	EnvFilesDir  = "EBCRAWL_FILES_DIR"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads and decodes a YAML configuration file.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// FindConfigFile returns the configuration file to use, or "" if none exists.
// An explicit path is used as is; otherwise .ebcrawl is looked up in the
// working directory, the XDG config directory and the home directory.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// LoadEnv applies EBCRAWL_* variables to cfg. Variables set in the process
// environment win over those in the dotenv file. A missing dotenv file is not an error.
func LoadEnv(cfg *Config, dotenvPath string) error {
	fileVars := map[string]string{}
	if dotenvPath != "" {
		vars, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("failed to read %s: %w", dotenvPath, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}
	applyEnv(cfg, lookup)
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvCookie); ok && v != "" {
		cfg.Cookie = v
	}
	if v, ok := lookup(EnvProxy); ok && v != "" {
		cfg.ProxyAddress = v
	}
	if v, ok := lookup(EnvUserAgent); ok && v != "" {
		cfg.UserAgent = v
	}
	if v, ok := lookup(EnvDBDir); ok && v != "" {
		cfg.DBDir = v
	}
	if v, ok := lookup(EnvFilesDir); ok && v != "" {
		cfg.FilesDir = v
	}
}
