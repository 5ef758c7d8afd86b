package config

import (
	log "log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxpilot/internal/ipc"
	"voxpilot/internal/listen"
)

var keys = []string{
	"OPENAI_API_KEY", "VOXPILOT_MODEL", "VOXPILOT_TTS_MODEL", "VOXPILOT_TTS_VOICE",
	"VOXPILOT_LANGUAGE", "VOXPILOT_SENSITIVITY", "VOXPILOT_WHISPER_MODEL", "VOXPILOT_ADB",
	"VOXPILOT_SERIAL", "BUS_URL", "VOXPILOT_PROXY", "VOXPILOT_HISTORY", "VOXPILOT_ACK",
	"VOXPILOT_REPLAY_DIR", "VOXPILOT_EARCON", "VOXPILOT_SOCKET",
}

// clean unsets every key for the duration of the test.
func clean(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeEnv(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clean(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load([]string{"--env", writeEnv(t, "")})
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, listen.SensitivityNormal, cfg.Sensitivity)
	assert.Equal(t, 20, cfg.HistoryCap)
	assert.True(t, cfg.Acknowledge)
	assert.Equal(t, log.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.Proxy)
	assert.Equal(t, "beep.mp3", cfg.Earcon)
	assert.Equal(t, ipc.DefaultSocketPath, cfg.Socket)
}

func TestLoad_EnvFileAndFlags(t *testing.T) {
	clean(t)
	env := writeEnv(t, `
OPENAI_API_KEY=sk-file
VOXPILOT_SENSITIVITY=Patient
VOXPILOT_HISTORY=8
VOXPILOT_SERIAL=emulator-5554
VOXPILOT_PROXY=10.0.0.1:1080
BUS_URL=ws://hub:8092/ws
VOXPILOT_ACK=true
`)

	cfg, err := Load([]string{"-e", env, "-s", "R58M", "--no-ack", "-l", "debug", "--replay", "clips"})
	require.NoError(t, err)

	assert.Equal(t, "sk-file", cfg.APIKey)
	assert.Equal(t, listen.SensitivityPatient, cfg.Sensitivity)
	assert.Equal(t, 8, cfg.HistoryCap)
	assert.Equal(t, "R58M", cfg.Serial)
	assert.Equal(t, "10.0.0.1:1080", cfg.Proxy)
	assert.Equal(t, "ws://hub:8092/ws", cfg.BusURL)
	assert.Equal(t, "clips", cfg.ReplayDir)
	assert.False(t, cfg.Acknowledge)
	assert.Equal(t, log.LevelDebug, cfg.LogLevel)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	clean(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	env := writeEnv(t, "OPENAI_API_KEY=sk-file\n")

	cfg, err := Load([]string{"--env", env})
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	clean(t)
	empty := writeEnv(t, "")

	_, err := Load([]string{"--env", empty})
	assert.ErrorIs(t, err, ErrMissingKey)

	t.Setenv("OPENAI_API_KEY", "sk")
	_, err = Load([]string{"--env", filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, err)

	_, err = Load([]string{"--env", empty, "--log", "loud"})
	assert.Error(t, err)

	_, err = Load([]string{"--env", empty, "--bogus"})
	assert.Error(t, err)

	t.Setenv("VOXPILOT_SENSITIVITY", "twitchy")
	_, err = Load([]string{"--env", empty})
	assert.Error(t, err)

	t.Setenv("VOXPILOT_SENSITIVITY", "")
	t.Setenv("VOXPILOT_HISTORY", "1")
	_, err = Load([]string{"--env", empty})
	assert.Error(t, err)
}
