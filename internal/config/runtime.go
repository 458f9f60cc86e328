package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/peterkuimelis/sanctum/internal/duel"
	"github.com/peterkuimelis/sanctum/internal/engine"
)

// NewLogger builds the diagnostic logger. Output goes to stderr so the MCP
// binary keeps stdout for the protocol.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}

	return zapCfg.Build()
}

// EngineClient creates the engine client rendering states for the human seat.
func (c Config) EngineClient(diag *zap.Logger) *engine.Client {
	return engine.NewClient(engine.ClientConfig{
		BaseURL:     c.Engine.URL,
		Timeout:     c.Engine.Timeout,
		Perspective: c.Duel.HumanSeat,
		Logger:      diag.Named("engine"),
	})
}

// DuelTemplate converts the duel section into the settings every session
// starts from.
func (c Config) DuelTemplate(diag *zap.Logger) duel.DuelConfig {
	return duel.DuelConfig{
		Human:           c.Duel.HumanSeat,
		PlayerFaction:   c.Duel.PlayerFaction,
		OpponentFaction: c.Duel.OpponentFaction,
		Pacing:          c.Duel.Pacing,
		MaxIterations:   c.Duel.MaxIterations,
		AutoOpponent:    c.Duel.AutoOpponent,
		Policy:          duel.SharedPolicy(duel.NewRandomPolicy(c.Duel.Seed, c.Duel.Activation)),
		Diag:            diag.Named("duel"),
	}
}
