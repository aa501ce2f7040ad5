package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "cnc-service"

// New returns a console logger in development and JSON everywhere else.
func New(environment string) zerolog.Logger {
	return newWithWriter(environment, os.Stdout)
}

func newWithWriter(environment string, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	var w io.Writer = out
	if environment == "development" || environment == "" {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("env", environment).
		Logger()
}
