package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "warning", "error", "DEBUG"} {
		loggers, err := SetupLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, loggers.InfoLogger)
		assert.NotNil(t, loggers.ErrorLogger)
	}
}

func TestSetupLoggerUnknownLevel(t *testing.T) {
	_, err := SetupLogger("verbose")
	require.Error(t, err)
}
