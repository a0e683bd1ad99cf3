// ABOUTME: Tests for chat-gateway command helpers
// ABOUTME: Covers config path resolution, generated configs and the color log handler

package main

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaozhu6-2-2/Chat/internal/config"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CHAT_CONFIG", "/etc/chat/gateway.yaml")
	assert.Equal(t, "/etc/chat/gateway.yaml", getConfigPath())

	t.Setenv("CHAT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "chat-gateway", "gateway.yaml"), getConfigPath())

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, filepath.Join("/home/tester", ".config", "chat-gateway", "gateway.yaml"), getConfigPath())
}

func TestGetDataPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, filepath.Join("/data", "chat-gateway"), getDataPath())
}

func TestRenderConfig_Loads(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DB_PATH", "DB_DRIVER", "JWT_SECRET", "LOG_LEVEL"} {
		t.Setenv("CHAT_"+k, "")
	}

	secret, err := generateSecret()
	require.NoError(t, err)

	dir := t.TempDir()
	content := renderConfig(initAnswers{
		HTTPAddr:          "127.0.0.1:9000",
		AllowedOrigins:    []string{"https://chat.example.com"},
		DBDriver:          "sqlite",
		DBPath:            filepath.Join(dir, "chat.db"),
		JWTSecret:         secret,
		TailscaleEnabled:  true,
		TailscaleHostname: "chat",
		LogLevel:          "debug",
		LogFormat:         "json",
	})

	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, secret, cfg.Auth.JWTSecret)
	assert.True(t, cfg.Tailscale.Enabled)
	assert.Equal(t, "chat", cfg.Tailscale.Hostname)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestAskInit_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	// Every prompt accepts its default.
	reader := bufio.NewReader(strings.NewReader(strings.Repeat("\n", 20)))
	a, err := askInit(reader, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", a.HTTPAddr)
	assert.Equal(t, []string{"*"}, a.AllowedOrigins)
	assert.Equal(t, "sqlite", a.DBDriver)
	assert.Equal(t, filepath.Join("/data", "chat-gateway", "chat.db"), a.DBPath)
	assert.False(t, a.TailscaleEnabled)
	assert.Equal(t, "info", a.LogLevel)
	assert.GreaterOrEqual(t, len(a.JWTSecret), 32)
}

func TestLoadConfig_FallsBackToEnv(t *testing.T) {
	t.Setenv("CHAT_DB_PATH", "/tmp/chat.db")
	t.Setenv("CHAT_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CHAT_HTTP_ADDR", "")
	t.Setenv("CHAT_DB_DRIVER", "")
	t.Setenv("CHAT_LOG_LEVEL", "")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/chat.db", cfg.Database.Path)
}

func TestColorHandler(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "api").WithGroup("req").Warn("slow request", "path", "/login")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN slow request")
	assert.Contains(t, out, "component=api")
	assert.Contains(t, out, "req.path=/login")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	logger.Error("kept", "code", 7)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"code":7`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
