package view

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
)

// LevelSilent is above every level slog emits.
const LevelSilent = slog.Level(100)

// ParseLevel maps a log level name to a slog level. An empty name and
// "silent" disable logging.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "silent":
		return LevelSilent, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return LevelSilent, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger returns a logger writing to w: colored text for the human view
// and JSON lines otherwise. It returns nil when level is LevelSilent.
func NewLogger(vt ViewType, w io.Writer, level slog.Level) *slog.Logger {
	if level >= LevelSilent {
		return nil
	}
	if vt == ViewJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       level,
		TimeFormat:  time.TimeOnly,
		NoColor:     color.NoColor,
		ReplaceAttr: rewriteLogLevel,
	}))
}

func rewriteLogLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) != 0 {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch level {
	case slog.LevelInfo:
		a.Value = slog.StringValue(color.GreenString("INFO"))
	case slog.LevelWarn:
		a.Value = slog.StringValue(color.YellowString("WARN"))
	case slog.LevelError:
		a.Value = slog.StringValue(color.RedString("ERROR"))
	default:
		a.Value = slog.StringValue(level.String())
	}
	return a
}
