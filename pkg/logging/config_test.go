package logging_test

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/evaldeck/evaldeck/pkg/logging"
)

func TestConfigFunctions(t *testing.T) {
	// Save and restore the original logger and level
	originalLogger := *logging.Default()
	originalLevel := zerolog.GlobalLevel()
	defer func() {
		logging.SetDefault(originalLogger)
		zerolog.SetGlobalLevel(originalLevel)
	}()

	t.Run("DefaultConfig returns sensible defaults", func(t *testing.T) {
		cfg := logging.DefaultConfig()
		assert.NotNil(t, cfg)
		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, "auto", cfg.Format)
		assert.False(t, cfg.AddCaller)
		assert.Equal(t, "stderr", cfg.Output)
	})

	t.Run("NewLoggerFromConfig creates logger with config", func(t *testing.T) {
		tmpfile, err := os.CreateTemp("", "test-log-*.txt")
		assert.NoError(t, err)
		defer os.Remove(tmpfile.Name())
		defer tmpfile.Close()

		cfg := &logging.Config{
			Level:  "debug",
			Format: "json",
			Output: tmpfile.Name(),
		}

		logger := logging.NewLoggerFromConfig(cfg)
		logger.Info().Str("dataset_id", "ds-1").Msg("fetched events")

		content, err := os.ReadFile(tmpfile.Name())
		assert.NoError(t, err)
		output := string(content)
		assert.Contains(t, output, "fetched events")
		assert.Contains(t, output, "ds-1")
	})

	t.Run("Configure sets global logger from config", func(t *testing.T) {
		tmpfile, err := os.CreateTemp("", "test-log-*.txt")
		assert.NoError(t, err)
		defer os.Remove(tmpfile.Name())
		defer tmpfile.Close()

		cfg := &logging.Config{
			Level:  "warn",
			Format: "json",
			Output: tmpfile.Name(),
		}

		logging.Configure(cfg)

		// Below warn level, should not appear
		logging.Debug().Msg("debug message")
		logging.Info().Msg("info message")

		// At or above warn level, should appear
		logging.Warn().Msg("warn message")
		logging.Error().Msg("error message")

		content, err := os.ReadFile(tmpfile.Name())
		assert.NoError(t, err)
		output := string(content)
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		tmpfile, err := os.CreateTemp("", "test-log-*.txt")
		assert.NoError(t, err)
		defer os.Remove(tmpfile.Name())
		defer tmpfile.Close()

		cfg := &logging.Config{
			Level:  "definitely-not-a-level",
			Format: "json",
			Output: tmpfile.Name(),
		}

		logger := logging.NewLoggerFromConfig(cfg)
		logger.Info().Msg("still visible")

		content, err := os.ReadFile(tmpfile.Name())
		assert.NoError(t, err)
		assert.Contains(t, string(content), "still visible")
	})
}
