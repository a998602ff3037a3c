// Package config resolves where leanproject keeps downloaded archives and
// which remote it fetches them from.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// CacheDirEnv overrides the cache directory.
	CacheDirEnv = "MATHLIB_CACHE_DIR"

	// URLFile holds the download URL inside the cache directory.
	URLFile = "url"

	// ConfigFile holds optional YAML overrides inside the cache directory.
	ConfigFile = "leanproject.yaml"

	DefaultDownloadURL      = "https://oleanstorage.azureedge.net/mathlib/"
	DefaultMathlibGitURL    = "https://github.com/leanprover-community/mathlib.git"
	DefaultMathlibManifest  = "https://raw.githubusercontent.com/leanprover-community/mathlib/master/leanpkg.toml"
	DefaultMaxFallbackDepth = 100
	DefaultHTTPTimeout      = 30 * time.Minute
)

// Config is the resolved configuration for one invocation.
type Config struct {
	CacheDir           string        `yaml:"-"`
	DownloadURL        string        `yaml:"download_url,omitempty"`
	MathlibGitURL      string        `yaml:"mathlib_git_url,omitempty"`
	MathlibManifestURL string        `yaml:"mathlib_manifest_url,omitempty"`
	MaxFallbackDepth   int           `yaml:"max_fallback_depth,omitempty"`
	Jobs               int           `yaml:"jobs,omitempty"`
	HTTPTimeout        time.Duration `yaml:"http_timeout,omitempty"`
}

// Default returns the built-in configuration rooted at cacheDir.
func Default(cacheDir string) *Config {
	return &Config{
		CacheDir:           cacheDir,
		DownloadURL:        DefaultDownloadURL,
		MathlibGitURL:      DefaultMathlibGitURL,
		MathlibManifestURL: DefaultMathlibManifest,
		MaxFallbackDepth:   DefaultMaxFallbackDepth,
		Jobs:               runtime.NumCPU(),
		HTTPTimeout:        DefaultHTTPTimeout,
	}
}

// DefaultCacheDir returns $MATHLIB_CACHE_DIR or ~/.mathlib.
func DefaultCacheDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(CacheDirEnv)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".mathlib"), nil
}

// Load resolves the configuration: defaults, then the YAML file, then the
// stored download URL. The cache directory is created if needed and the url
// file is seeded with the default URL on first run.
func Load() (*Config, error) {
	dir, err := DefaultCacheDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom is Load with an explicit cache directory.
func LoadFrom(cacheDir string) (*Config, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}
	cfg := Default(cacheDir)

	data, err := os.ReadFile(filepath.Join(cacheDir, ConfigFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", ConfigFile, err)
		}
		cfg.CacheDir = cacheDir
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	stored, err := os.ReadFile(filepath.Join(cacheDir, URLFile))
	switch {
	case err == nil:
		if url := NormalizeURL(string(stored)); url != "/" {
			cfg.DownloadURL = url
		}
	case errors.Is(err, os.ErrNotExist):
		if err := cfg.SetDownloadURL(cfg.DownloadURL); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to read download url: %w", err)
	}

	cfg.DownloadURL = NormalizeURL(cfg.DownloadURL)
	if cfg.MaxFallbackDepth < 0 {
		cfg.MaxFallbackDepth = 0
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.NumCPU()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	return cfg, nil
}

// SetDownloadURL stores url in the cache directory's url file.
func (c *Config) SetDownloadURL(url string) error {
	url = NormalizeURL(url)
	if err := os.WriteFile(filepath.Join(c.CacheDir, URLFile), []byte(url), 0644); err != nil {
		return fmt.Errorf("failed to store download url: %w", err)
	}
	c.DownloadURL = url
	return nil
}

// NormalizeURL trims whitespace and guarantees exactly one trailing slash.
func NormalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/") + "/"
}
