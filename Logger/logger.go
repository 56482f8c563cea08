package Logger

import (
	"io"
	"os"
	"time"

	"github.com/BaseW/MyGitHubNotification/Config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func New(cfg Config.Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg Config.Config, out io.Writer) zerolog.Logger {
	level, parseLevelError := zerolog.ParseLevel(cfg.LogLevel)
	if parseLevelError != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.AppEnv == "dev" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
		log.Logger = logger
		return logger
	}
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
