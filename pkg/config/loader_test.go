package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavespoole/carwash/pkg/config"
)

// Config loading mutates process-wide state, so these tests do not run in parallel.

type reminderTestConfig struct {
	LeadTime time.Duration `env:"TEST_REMINDER_LEAD" envDefault:"24h"`
	Location string        `env:"TEST_REMINDER_TZ" envDefault:"Europe/London"`
}

type queueTestConfig struct {
	Name        string `env:"TEST_QUEUE_NAME" envDefault:"reminders"`
	MaxAttempts int8   `env:"TEST_QUEUE_MAX_ATTEMPTS" envDefault:"3"`
}

type requiredTestConfig struct {
	Token string `env:"TEST_POSTMARK_TOKEN,required"`
}

type fileTestConfig struct {
	Driver   string   `env:"TEST_FILE_DRIVER"`
	Queues   []string `env:"TEST_FILE_QUEUES" envSeparator:","`
	Priority string   `env:"TEST_FILE_PRIORITY"`
}

func TestLoad_Defaults(t *testing.T) {
	config.ResetCache()

	var cfg reminderTestConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 24*time.Hour, cfg.LeadTime)
	assert.Equal(t, "Europe/London", cfg.Location)
}

func TestLoad_FromEnvironment(t *testing.T) {
	config.ResetCache()
	t.Setenv("TEST_QUEUE_NAME", "priority")
	t.Setenv("TEST_QUEUE_MAX_ATTEMPTS", "5")

	var cfg queueTestConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "priority", cfg.Name)
	assert.Equal(t, int8(5), cfg.MaxAttempts)
}

func TestLoad_CachedPerType(t *testing.T) {
	config.ResetCache()
	t.Setenv("TEST_QUEUE_NAME", "first")

	var first queueTestConfig
	require.NoError(t, config.Load(&first))

	t.Setenv("TEST_QUEUE_NAME", "second")
	var second queueTestConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Name)

	config.ResetCache()
	var third queueTestConfig
	require.NoError(t, config.Load(&third))
	assert.Equal(t, "second", third.Name)
}

func TestLoad_ConcurrentCallers(t *testing.T) {
	config.ResetCache()
	t.Setenv("TEST_REMINDER_LEAD", "2h")

	var wg sync.WaitGroup
	results := make([]reminderTestConfig, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = config.Load(&results[i])
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, 2*time.Hour, results[i].LeadTime)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	config.ResetCache()
	os.Unsetenv("TEST_POSTMARK_TOKEN")

	var cfg requiredTestConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	t.Setenv("TEST_POSTMARK_TOKEN", "token")
	require.NoError(t, config.Load(&cfg), "a failed parse must not be cached")
	assert.Equal(t, "token", cfg.Token)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *queueTestConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
}

func TestMustLoad(t *testing.T) {
	config.ResetCache()
	os.Unsetenv("TEST_POSTMARK_TOKEN")

	assert.Panics(t, func() {
		var cfg requiredTestConfig
		config.MustLoad(&cfg)
	})
	assert.NotPanics(t, func() {
		var cfg reminderTestConfig
		config.MustLoad(&cfg)
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	override := filepath.Join(dir, ".env.local")
	require.NoError(t, os.WriteFile(base, []byte("TEST_FILE_DRIVER=redis\nTEST_FILE_QUEUES=reminders,default\nTEST_FILE_PRIORITY=base\n"), 0o600))
	require.NoError(t, os.WriteFile(override, []byte("TEST_FILE_PRIORITY=local\n"), 0o600))

	for _, key := range []string{"TEST_FILE_DRIVER", "TEST_FILE_QUEUES", "TEST_FILE_PRIORITY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	t.Run("earlier files win", func(t *testing.T) {
		config.ResetCache()
		require.NoError(t, config.LoadEnv(base, override))

		var cfg fileTestConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "redis", cfg.Driver)
		assert.Equal(t, []string{"reminders", "default"}, cfg.Queues)
		assert.Equal(t, "base", cfg.Priority)
	})

	t.Run("missing file", func(t *testing.T) {
		err := config.LoadEnv(filepath.Join(dir, "nope.env"))
		assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
	})
}
