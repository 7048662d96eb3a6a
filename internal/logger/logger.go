package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger. Development gets a human readable
// console writer at debug level, everything else JSON at info level.
func New(env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if env == "development" || env == "" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
			Level(zerolog.DebugLevel).
			With().
			Timestamp().
			Str("service", "lpr-dashboard").
			Logger()
	}

	return zerolog.New(os.Stdout).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Str("service", "lpr-dashboard").
		Str("env", env).
		Logger()
}
