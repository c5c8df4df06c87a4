package logutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// NewLogger builds a text slog.Logger with source locations shortened to
// their base file name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}

// LevelFromEnv returns LevelDebug when BPE_DEBUG is set to anything
// non-empty, LevelInfo otherwise.
func LevelFromEnv() slog.Level {
	if os.Getenv("BPE_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
