package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps a config level name onto a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel, fmt.Errorf("log.level %q is not a valid level", s)
	}
	return lvl, nil
}

// NewLogger builds the process logger. Pretty output uses the console writer;
// otherwise JSON lines are written to out.
func (c LogConfig) NewLogger(out io.Writer) zerolog.Logger {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	w := out
	if c.Pretty == nil || *c.Pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
