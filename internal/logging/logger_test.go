package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	defer Init(Options{})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		Init(Options{Level: "loud"})
		assert.Equal(t, log.InfoLevel, L().GetLevel())
		assert.IsType(t, &log.TextFormatter{}, L().Formatter)
	})

	t.Run("json to rotated file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "relay.log")
		Init(Options{Level: "debug", Format: "json", File: file})
		assert.Equal(t, log.DebugLevel, L().GetLevel())
		assert.IsType(t, &log.JSONFormatter{}, L().Formatter)

		Component("relay").Info("subscribed")

		content, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"component":"relay"`)
		assert.Contains(t, string(content), `"msg":"subscribed"`)
	})
}
