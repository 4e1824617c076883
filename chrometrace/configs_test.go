package chrometrace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Config{}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, DefaultOutputPath, cfg.OutputPath)
	assert.Equal(t, DefaultFlushInterval, cfg.FlushInterval)
	assert.Equal(t, DefaultMaxBatchSize, cfg.MaxBatchSize)
	assert.Equal(t, FormatArray, cfg.Format)
	assert.Equal(t, EpochStart, cfg.ClockEpoch)
	assert.Equal(t, MisnestInstant, cfg.MisnestPolicy)
}

func TestConfig_RejectsUnknownValues(t *testing.T) {
	t.Parallel()
	for _, cfg := range []Config{
		{Format: "ndjson"},
		{ClockEpoch: "boot"},
		{MisnestPolicy: "repair"},
	} {
		_, err := cfg.withDefaults()
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestLoadConfig_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chrometrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output_path: out.json.gz
compress: true
flush_interval: 250ms
max_batch_size: 16
format: object
misnest_policy: end
`), 0o600))
	t.Setenv("CHROMETRACE_MAX_BATCH_SIZE", "32")
	t.Setenv("CHROMETRACE_PROCESS_NAME", "svc")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "out.json.gz", cfg.OutputPath)
	assert.True(t, cfg.Compress)
	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, 32, cfg.MaxBatchSize)
	assert.Equal(t, FormatObject, cfg.Format)
	assert.Equal(t, MisnestEnd, cfg.MisnestPolicy)
	assert.Equal(t, "svc", cfg.ProcessName)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.OutputPath)
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flush_every: 1s\n"), 0o600))
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
