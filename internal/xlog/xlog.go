// Package xlog is the controller's logging ambient stack: a thin wrapper
// around a logrus.Logger giving every package the same leveled helpers and,
// optionally, a Sentry hook for error-and-above events.
package xlog

import (
	"fmt"
	"os"

	"github.com/evalphobia/logrus_sentry"
	"github.com/sirupsen/logrus"
)

// Logger is the handle every controller package logs through. It embeds
// *logrus.Entry so New("controller").WithField("height", 12).Info("applied")
// reads the same as a direct logrus call.
type Logger struct {
	*logrus.Entry
}

var root = logrus.New()

// Configure sets the process-wide log level and output format. format is
// "text" or "json", mirroring the --log.format/--log.verbosity/--log.color
// flags. verbosity follows geth/logrus convention: 0=panic .. 6=trace.
func Configure(verbosity int, format string, color bool) error {
	lvl, err := verbosityToLevel(verbosity)
	if err != nil {
		return err
	}
	root.SetLevel(lvl)
	root.SetOutput(os.Stderr)

	switch format {
	case "json":
		root.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		root.SetFormatter(&logrus.TextFormatter{ForceColors: color, DisableColors: !color, FullTimestamp: true})
	default:
		return fmt.Errorf("xlog: unknown log format %q", format)
	}
	return nil
}

func verbosityToLevel(verbosity int) (logrus.Level, error) {
	switch {
	case verbosity <= 0:
		return logrus.PanicLevel, nil
	case verbosity == 1:
		return logrus.FatalLevel, nil
	case verbosity == 2:
		return logrus.ErrorLevel, nil
	case verbosity == 3:
		return logrus.WarnLevel, nil
	case verbosity == 4:
		return logrus.InfoLevel, nil
	case verbosity == 5:
		return logrus.DebugLevel, nil
	case verbosity >= 6:
		return logrus.TraceLevel, nil
	}
	return logrus.InfoLevel, nil
}

// EnableSentry attaches a Sentry hook forwarding error-level-and-above
// entries to dsn. A blank dsn leaves logging untouched — Sentry forwarding
// is opt-in via --sentry.dsn and otherwise entirely inert.
func EnableSentry(dsn string) error {
	if dsn == "" {
		return nil
	}
	hook, err := logrus_sentry.NewSentryHook(dsn, []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	})
	if err != nil {
		return fmt.Errorf("xlog: sentry hook: %w", err)
	}
	hook.Timeout = 0 // fire-and-forget; never block the caller on network I/O
	root.AddHook(hook)
	return nil
}

// New returns a Logger scoped to component, the same "tag the subsystem"
// convention the controller's packages (controller, forkdb, txapply, ...)
// all log through.
func New(component string) *Logger {
	return &Logger{root.WithField("component", component)}
}
