package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vex788/zeus-trading-bot/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.InfoLevel, "json", "")
	l.Debug().Msg("hidden")
	l.Info().Str("pair", "BTC-USDT").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "BTC-USDT", entry["pair"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeus.log")
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})

	l, closer, err := Setup(config.Log{Level: "warn", Format: "json", Output: "file", File: path})
	require.NoError(t, err)
	l.Warn().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestSetupRejectsBadLevel(t *testing.T) {
	_, _, err := Setup(config.Log{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}
