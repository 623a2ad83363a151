package host

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrLoadingEnvFile = errors.New("failed to load env file")
	ErrParsingConfig  = errors.New("failed to parse config from environment")
	ErrInvalidConfig  = errors.New("invalid config")
)

const defaultMailboxSize = 64

// Config controls how a Runner hosts its instance
type Config struct {
	MailboxSize   int        `env:"FSM_MAILBOX_SIZE" envDefault:"64"`
	MaxChainDepth int        `env:"FSM_MAX_CHAIN_DEPTH" envDefault:"64"`
	LogLevel      slog.Level `env:"FSM_LOG_LEVEL" envDefault:"info"`
	SnapshotDSN   string     `env:"FSM_SNAPSHOT_DSN" envDefault:"file::memory:?cache=shared"`
}

// LoadConfig reads the configuration from the environment. Without arguments
// a .env file in the working directory is loaded when present; explicitly
// named files must exist. Variables already set in the environment win over
// file values.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, errors.Join(ErrLoadingEnvFile, err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoadConfig is like LoadConfig but panics on error
func MustLoadConfig(envFiles ...string) Config {
	cfg, err := LoadConfig(envFiles...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
	return cfg
}

func (c Config) Validate() error {
	if c.MailboxSize <= 0 {
		return fmt.Errorf("%w: FSM_MAILBOX_SIZE must be positive, got %d", ErrInvalidConfig, c.MailboxSize)
	}
	if c.MaxChainDepth <= 0 {
		return fmt.Errorf("%w: FSM_MAX_CHAIN_DEPTH must be positive, got %d", ErrInvalidConfig, c.MaxChainDepth)
	}
	return nil
}

// NewLogger returns a text logger writing to w at the configured level
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

func (c Config) mailboxSize() int {
	if c.MailboxSize <= 0 {
		return defaultMailboxSize
	}
	return c.MailboxSize
}
