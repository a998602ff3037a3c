package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedsURLFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mathlib")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultDownloadURL, cfg.DownloadURL)
	assert.Equal(t, DefaultMaxFallbackDepth, cfg.MaxFallbackDepth)

	data, err := os.ReadFile(filepath.Join(dir, URLFile))
	require.NoError(t, err)
	assert.Equal(t, DefaultDownloadURL, string(data))
}

func TestLoadReadsStoredURLAndYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, URLFile), []byte("https://example.org/oleans//\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(
		"max_fallback_depth: 7\njobs: 3\nhttp_timeout: 90s\nmathlib_git_url: git@example.org:mathlib.git\n"), 0644))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/oleans/", cfg.DownloadURL)
	assert.Equal(t, 7, cfg.MaxFallbackDepth)
	assert.Equal(t, 3, cfg.Jobs)
	assert.Equal(t, 90*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "git@example.org:mathlib.git", cfg.MathlibGitURL)
	assert.Equal(t, dir, cfg.CacheDir)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("jobs: [\n"), 0644))

	_, err := LoadFrom(dir)
	assert.ErrorContains(t, err, ConfigFile)
}

func TestSetDownloadURLNormalizes(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cfg.SetDownloadURL("  http://localhost:8000/cache  "))
	assert.Equal(t, "http://localhost:8000/cache/", cfg.DownloadURL)

	reloaded, err := LoadFrom(cfg.CacheDir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/cache/", reloaded.DownloadURL)
}

func TestDefaultCacheDirHonoursEnv(t *testing.T) {
	t.Setenv(CacheDirEnv, "/tmp/custom-mathlib")
	dir, err := DefaultCacheDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-mathlib", dir)
}
