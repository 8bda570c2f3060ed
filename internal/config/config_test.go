package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashkit/flashkit/internal/config"
)

func withTempFlashkitHome(t *testing.T) (string, func()) {
	t.Helper()
	tmp := t.TempDir()
	config.SetConfigDir(tmp)
	return tmp, func() { config.SetConfigDir("") }
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	_, cleanup := withTempFlashkitHome(t)
	defer cleanup()

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), *cfg)
}

func TestLoadValidConfig(t *testing.T) {
	tmp, cleanup := withTempFlashkitHome(t)
	defer cleanup()

	content := `default_block_size = 512
default_max_download_chunk = 65536
default_max_fragment_size = 100000000
default_log_level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.toml"), []byte(content), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, uint32(512), cfg.DefaultBlockSize)
	assert.Equal(t, uint32(65536), cfg.DefaultMaxDownloadChunk)
	assert.Equal(t, int64(100000000), cfg.DefaultMaxFragmentSize)
	assert.Equal(t, "debug", cfg.DefaultLogLevel)
}

func TestLoadPartialConfigKeepsDefaultsForOmittedFields(t *testing.T) {
	tmp, cleanup := withTempFlashkitHome(t)
	defer cleanup()

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.toml"), []byte(`default_log_level = "warn"`), 0o644))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Defaults().DefaultBlockSize, cfg.DefaultBlockSize)
	assert.Equal(t, "warn", cfg.DefaultLogLevel)
}

func TestLoadMalformedTOML(t *testing.T) {
	tmp, cleanup := withTempFlashkitHome(t)
	defer cleanup()

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "config.toml"), []byte("not valid [[ toml"), 0o644))

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config.toml")
}

func TestSetThenGetRoundtrip(t *testing.T) {
	_, cleanup := withTempFlashkitHome(t)
	defer cleanup()

	require.NoError(t, config.Set("default_block_size", "2048"))

	val, err := config.Get("default_block_size")
	require.NoError(t, err)
	assert.Equal(t, "2048", val)
}

func TestSetRejectsNonNumericBlockSize(t *testing.T) {
	_, cleanup := withTempFlashkitHome(t)
	defer cleanup()

	err := config.Set("default_block_size", "not-a-number")
	require.Error(t, err)
}

func TestGetUnknownKey(t *testing.T) {
	_, cleanup := withTempFlashkitHome(t)
	defer cleanup()

	_, err := config.Get("nonexistent_key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestSetUnknownKey(t *testing.T) {
	_, cleanup := withTempFlashkitHome(t)
	defer cleanup()

	err := config.Set("nonexistent_key", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestEnsureDirCreatesDirectory(t *testing.T) {
	tmp := t.TempDir()
	newDir := filepath.Join(tmp, "subdir", ".flashkit")
	config.SetConfigDir(newDir)
	defer config.SetConfigDir("")

	require.NoError(t, config.EnsureDir())

	info, err := os.Stat(newDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigPath(t *testing.T) {
	tmp, cleanup := withTempFlashkitHome(t)
	defer cleanup()

	assert.Equal(t, filepath.Join(tmp, "config.toml"), config.ConfigPath())
}
