package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration shared by the binaries.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Duel    DuelConfig    `yaml:"duel"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig locates the remote rules engine.
type EngineConfig struct {
	URL     string        `yaml:"url" env:"SANCTUM_ENGINE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"SANCTUM_ENGINE_TIMEOUT"`
}

// DuelConfig controls one orchestrated session.
type DuelConfig struct {
	PlayerFaction   string        `yaml:"player_faction" env:"SANCTUM_PLAYER_FACTION"`
	OpponentFaction string        `yaml:"opponent_faction" env:"SANCTUM_OPPONENT_FACTION"`
	HumanSeat       int           `yaml:"human_seat" env:"SANCTUM_HUMAN_SEAT"`
	Pacing          time.Duration `yaml:"pacing" env:"SANCTUM_PACING"`
	MaxIterations   int           `yaml:"max_iterations" env:"SANCTUM_MAX_ITERATIONS"`
	Activation      float64       `yaml:"activation_probability" env:"SANCTUM_ACTIVATION_PROBABILITY"`
	Seed            uint64        `yaml:"seed" env:"SANCTUM_SEED"`
	AutoOpponent    bool          `yaml:"auto_opponent" env:"SANCTUM_AUTO_OPPONENT"`
}

// ServerConfig holds listen addresses for the presentation adapters.
type ServerConfig struct {
	Addr    string `yaml:"addr" env:"SANCTUM_ADDR"`
	WebAddr string `yaml:"web_addr" env:"SANCTUM_WEB_ADDR"`
}

// LoggingConfig selects the diagnostic logger.
type LoggingConfig struct {
	Level       string `yaml:"level" env:"SANCTUM_LOG_LEVEL"`
	Development bool   `yaml:"development" env:"SANCTUM_LOG_DEVELOPMENT"`
}

// Default returns a configuration with every value set.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			URL:     "http://localhost:5000",
			Timeout: 10 * time.Second,
		},
		Duel: DuelConfig{
			PlayerFaction:   "Skyforge",
			OpponentFaction: "Miasma",
			HumanSeat:       0,
			Pacing:          800 * time.Millisecond,
			MaxIterations:   20,
			Activation:      0.8,
			AutoOpponent:    true,
		},
		Server: ServerConfig{
			Addr:    ":9000",
			WebAddr: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables. Unset variables
// leave the target's current values alone.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects values the orchestrator cannot run with.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.Engine.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("engine.url %q is not an absolute URL", c.Engine.URL))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, errors.New("engine.timeout must be positive"))
	}
	if c.Duel.PlayerFaction == "" || c.Duel.OpponentFaction == "" {
		errs = append(errs, errors.New("duel factions must be set"))
	}
	if c.Duel.HumanSeat != 0 && c.Duel.HumanSeat != 1 {
		errs = append(errs, fmt.Errorf("duel.human_seat must be 0 or 1, got %d", c.Duel.HumanSeat))
	}
	if c.Duel.Pacing < 0 {
		errs = append(errs, errors.New("duel.pacing must not be negative"))
	}
	if c.Duel.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("duel.max_iterations must be positive, got %d", c.Duel.MaxIterations))
	}
	if c.Duel.Activation < 0 || c.Duel.Activation > 1 {
		errs = append(errs, fmt.Errorf("duel.activation_probability must be within [0,1], got %g", c.Duel.Activation))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	return errors.Join(errs...)
}
