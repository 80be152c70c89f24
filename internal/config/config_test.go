package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-compressor/internal/processor"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "watch:\n  roots: [/photos]\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"/photos"}, cfg.Watch.Roots)
	require.Equal(t, 4*time.Second, cfg.Watch.SettleDelay)
	require.True(t, cfg.Watch.Coalesce)
	require.False(t, cfg.Watch.ScanExisting)
	require.Equal(t, os.TempDir(), cfg.Watch.LockDir)

	opts := cfg.ProcessorOptions()
	require.EqualValues(t, 100*1024, opts.MaxBytes)
	require.Equal(t, 1920, opts.MaxWidth)
	require.Equal(t, 1080, opts.MaxHeight)
	require.Equal(t, processor.DefaultQualitySearch(), opts.Search)
	require.Equal(t, processor.DefaultSuffix, opts.Suffix)
	require.True(t, opts.AtomicWrite)
	require.Equal(t, processor.DefaultOptions().Retry, opts.Retry)

	require.Equal(t, "info", cfg.Log.Level)
	require.Empty(t, cfg.Server.HTTPPort)
	require.False(t, cfg.Storage.Enabled)
	require.Equal(t, "compressed", cfg.Storage.Prefix)
	require.False(t, cfg.Kafka.Enabled)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
watch:
  roots: [/photos, /scans]
  settle_delay: 500ms
  coalesce: false
  scan_existing: true
compression:
  max_size_kb: 250
  search: bisect
  suffix: _web
retry:
  attempts: 5
  delay: 2s
  backoff: 2
server:
  http_port: ":8081"
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"/photos", "/scans"}, cfg.Watch.Roots)

	ro := cfg.RouterOptions()
	require.Equal(t, 500*time.Millisecond, ro.SettleDelay)
	require.False(t, ro.Coalesce)
	require.Equal(t, "_web", ro.Suffix)

	require.True(t, cfg.SupervisorOptions().ScanExisting)

	opts := cfg.ProcessorOptions()
	require.EqualValues(t, 250*1024, opts.MaxBytes)
	require.Equal(t, processor.Bisect, opts.Search.Mode)
	require.Equal(t, 5, opts.Retry.Attempts)
	require.Equal(t, 2*time.Second, opts.Retry.Delay)
	require.InDelta(t, 2.0, opts.Retry.Backoff, 1e-9)
	require.Equal(t, ":8081", cfg.Server.HTTPPort)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "watch:\n  roots: [/photos]\n")
	t.Setenv("IMGC_WATCH_SETTLE_DELAY", "1s")
	t.Setenv("IMGC_COMPRESSION_MAX_WIDTH", "800")
	t.Setenv("IMGC_LOG_LEVEL", "debug")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, time.Second, cfg.Watch.SettleDelay)
	require.Equal(t, 800, cfg.Compression.MaxWidth)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	path := writeConfig(t, "watch:\n  roots: [/photos]\n")
	t.Setenv("IMGC_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringSlice("root", nil, "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--root", "/a", "--root", "/b", "--log-level", "error"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	require.Equal(t, []string{"/a", "/b"}, cfg.Watch.Roots)
	require.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"), nil)
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"no roots":            "watch:\n  roots: []\n",
		"floor above initial": "watch:\n  roots: [/p]\ncompression:\n  initial_quality: 50\n  min_quality: 60\n",
		"zero step":           "watch:\n  roots: [/p]\ncompression:\n  quality_step: 0\n",
		"unknown search":      "watch:\n  roots: [/p]\ncompression:\n  search: random\n",
		"zero attempts":       "watch:\n  roots: [/p]\nretry:\n  attempts: 0\n",
		"shrinking backoff":   "watch:\n  roots: [/p]\nretry:\n  backoff: 0.5\n",
		"storage incomplete":  "watch:\n  roots: [/p]\nstorage:\n  enabled: true\n",
		"kafka no brokers":    "watch:\n  roots: [/p]\nkafka:\n  enabled: true\n  topic: images\n",
		"duplicate root":      "watch:\n  roots: [/p, /p]\n",
		"bad log level":       "watch:\n  roots: [/p]\nlog:\n  level: loud\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), nil)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	require.Panics(t, func() {
		MustLoad(writeConfig(t, "watch:\n  roots: []\n"), nil)
	})
}
