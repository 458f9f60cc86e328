package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sanctum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Duel.MaxIterations)
	assert.Equal(t, 0.8, cfg.Duel.Activation)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  url: http://engine.local:5000
  timeout: 3s
duel:
  opponent_faction: Skyforge
  pacing: 0s
  seed: 99
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://engine.local:5000", cfg.Engine.URL)
	assert.Equal(t, 3*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, "Skyforge", cfg.Duel.OpponentFaction)
	assert.Equal(t, "Skyforge", cfg.Duel.PlayerFaction, "unset keys keep their defaults")
	assert.Zero(t, cfg.Duel.Pacing)
	assert.Equal(t, uint64(99), cfg.Duel.Seed)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "duel:\n  max_iterations: 5\n")
	t.Setenv("SANCTUM_MAX_ITERATIONS", "7")
	t.Setenv("SANCTUM_ENGINE_URL", "http://10.0.0.2:5000")
	t.Setenv("SANCTUM_AUTO_OPPONENT", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Duel.MaxIterations)
	assert.Equal(t, "http://10.0.0.2:5000", cfg.Engine.URL)
	assert.False(t, cfg.Duel.AutoOpponent)
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("SANCTUM_PACING", "soon")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "engine: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative url", func(c *Config) { c.Engine.URL = "localhost" }, "engine.url"},
		{"zero timeout", func(c *Config) { c.Engine.Timeout = 0 }, "engine.timeout"},
		{"no faction", func(c *Config) { c.Duel.PlayerFaction = "" }, "factions"},
		{"third seat", func(c *Config) { c.Duel.HumanSeat = 2 }, "human_seat"},
		{"negative pacing", func(c *Config) { c.Duel.Pacing = -time.Second }, "pacing"},
		{"zero cap", func(c *Config) { c.Duel.MaxIterations = 0 }, "max_iterations"},
		{"probability", func(c *Config) { c.Duel.Activation = 1.5 }, "activation_probability"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDuelTemplate(t *testing.T) {
	cfg := Default()
	cfg.Duel.HumanSeat = 1
	cfg.Duel.Pacing = 0
	cfg.Duel.MaxIterations = 7

	dc := cfg.DuelTemplate(zaptest.NewLogger(t))
	assert.Equal(t, 1, dc.Human)
	assert.Equal(t, "Skyforge", dc.PlayerFaction)
	assert.Equal(t, "Miasma", dc.OpponentFaction)
	assert.Equal(t, 7, dc.MaxIterations)
	assert.True(t, dc.AutoOpponent)
	assert.NotNil(t, dc.Policy)
	assert.NotNil(t, dc.Diag)

	client := cfg.EngineClient(zaptest.NewLogger(t))
	assert.Equal(t, 1, client.Perspective())
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		for _, dev := range []bool{false, true} {
			logger, err := NewLogger(LoggingConfig{Level: level, Development: dev})
			require.NoError(t, err)
			assert.NotNil(t, logger)
		}
	}

	logger, err := NewLogger(LoggingConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
