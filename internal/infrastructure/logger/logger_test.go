package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retail/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfigs(t *testing.T) {
	dev := DefaultConfig()
	assert.Equal(t, "console", dev.Format)
	assert.Equal(t, "stdout", dev.Output)

	prod := ProductionConfig()
	assert.Equal(t, "json", prod.Format)
	assert.Equal(t, "info", prod.Level)

	fromApp := FromAppConfig(config.LogConfig{Level: "debug", Format: "json", Output: "stderr"})
	assert.Equal(t, &Config{Level: "debug", Format: "json", Output: "stderr", TimeFormat: DefaultTimeFormat}, fromApp)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"default", DefaultConfig()},
		{"production", ProductionConfig()},
		{"stderr debug", &Config{Level: "debug", Format: "json", Output: "stderr"}},
		{"unknown level", &Config{Level: "verbose", Format: "console", Output: "stdout"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retail.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("Bill finalized")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"Bill finalized"`))
}

func TestNewForEnvironment(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		l, err := NewForEnvironment(env)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestCreateWriter(t *testing.T) {
	for _, out := range []string{"stdout", "STDOUT", "stderr", ""} {
		assert.NotNil(t, createWriter(out), out)
	}
	// unopenable path falls back to stdout
	assert.NotNil(t, createWriter(filepath.Join(t.TempDir(), "missing", "dir", "x.log")))
}
