// Package logger builds the process logger and provides nil-safe attribute
// helpers so call sites can write log.Warn("msg", logger.Error(err)) without
// checking for nil first.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// New returns a logger writing to w at the given level. format is "text" or
// "json".
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func Slot(s telephony.SlotID) slog.Attr {
	return slog.String("slot", s.String())
}

func Kind(k telephony.EventKind) slog.Attr {
	return slog.String("kind", k.String())
}

func Mask(m telephony.Mask) slog.Attr {
	return slog.String("mask", m.String())
}

// Identity groups the caller identity fields under "caller".
func Identity(id telephony.Identity) slog.Attr {
	attrs := []slog.Attr{
		slog.Int("pid", int(id.PID)),
		slog.Uint64("uid", uint64(id.UID)),
		slog.Uint64("token", uint64(id.TokenID)),
	}
	if id.BundleName != "" {
		attrs = append(attrs, slog.String("bundle", id.BundleName))
	}
	return slog.Attr{Key: "caller", Value: slog.GroupValue(attrs...)}
}

// ID creates an identifier attribute with a custom key. Empty ids produce an
// empty Attr.
func ID(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
