package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Format selects the handler New builds.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type config struct {
	out    io.Writer
	format Format
}

// Option configures New.
type Option func(*config)

// WithWriter redirects the output. Defaults to Stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithFormat selects text (default) or JSON records.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// New creates a configured application logger.
// It writes to Stderr so Stdout stays free for progress output and the MCP stdio transport.
// It standardizes common keys (e.g., "error" -> "err").
func New(level slog.Level, opts ...Option) *slog.Logger {
	c := config{out: os.Stderr, format: FormatText}
	for _, opt := range opts {
		opt(&c)
	}
	ho := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	if c.format == FormatJSON {
		return slog.New(slog.NewJSONHandler(c.out, ho))
	}
	return slog.New(slog.NewTextHandler(c.out, ho))
}

// ParseFormat accepts "", text and json.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("invalid log format %q (want text or json)", name)
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
