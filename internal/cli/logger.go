package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/PipeOpsHQ/medical-coder-api/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger writes to console and, when cfg.File is set, to a rotating log
// file.
func newLogger(cfg config.LogConfig, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	writers := []io.Writer{selectOutput(console)}
	var closer io.Closer = nopCloser{}
	if file := strings.TrimSpace(cfg.File); file != "" {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
		}
		writers = append(writers, lj)
		closer = lj
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

func parseLevel(raw string) (zerolog.Level, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return zerolog.InfoLevel, nil
	}
	if raw == "warning" {
		raw = "warn"
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}

// selectOutput uses the console writer on a terminal without NO_COLOR and
// JSON lines otherwise.
func selectOutput(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if ok && term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return w
}
