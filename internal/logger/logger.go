// Package logger configures the process-wide zerolog logger and optional
// Rollbar error reporting.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rollbar/rollbar-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/config"
)

// Init sets the global logger from configuration. It returns a flush function
// that must be called before the process exits.
func Init(cfg config.Logging, global config.Global) func() {
	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(out).With().Timestamp().Str("app", global.AppName).Logger()

	if cfg.RollbarToken != "" {
		rollbar.SetToken(cfg.RollbarToken)
		rollbar.SetEnvironment(global.Environment)
		rollbar.SetServerRoot("github.com/markit/attendance")
		logger = logger.Hook(rollbarHook{})
	}

	log.Logger = logger

	return func() {
		if cfg.RollbarToken != "" {
			rollbar.Wait()
		}
	}
}

// rollbarHook forwards error-level events to Rollbar.
type rollbarHook struct{}

func (rollbarHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	switch level {
	case zerolog.ErrorLevel:
		rollbar.Error(msg)
	case zerolog.FatalLevel, zerolog.PanicLevel:
		rollbar.Critical(msg)
	}
}
