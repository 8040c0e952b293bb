// Package logger provides the structured logger used across the platform.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger so call sites depend on this package, not on
// logrus directly.
type Logger struct {
	*logrus.Logger
}

// Config controls logger construction.
type Config struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output io.Writer
}

// New creates a logger from cfg. An empty Level defaults to info; an empty
// Format defaults to text.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output != nil {
		l.SetOutput(cfg.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	return &Logger{Logger: l}
}

// NewDefault returns a text-formatted, info-level logger tagged with name.
func NewDefault(name string) *Logger {
	l := New(Config{Level: "info", Format: "text"})
	l.AddHook(componentHook{name: name})
	return l
}

// componentHook sets the "component" field on every entry that does not
// already carry one.
type componentHook struct{ name string }

func (componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h componentHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["component"]; !ok {
		e.Data["component"] = h.name
	}
	return nil
}

// With returns a logrus.Entry scoped to the given component, the pattern
// every service/worker in this repository uses to tag its log lines.
func (l *Logger) With(component string) *logrus.Entry {
	return l.WithField("component", component)
}
