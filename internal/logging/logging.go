// Package logging builds the run's zerolog logger. Nothing here installs a global logger:
// the caller owns the returned handle and passes it to the components that log.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const EnvLogLevel = "MARSWALK_LOG_LEVEL"

type Config struct {
	Level string
	// Dir receives one file per day, marswalk-YYYY-MM-DD.log. Empty disables the file sink.
	Dir string
	// Console mirrors records to ConsoleOut (stderr if nil) in human-readable form.
	Console    bool
	ConsoleOut io.Writer
	App        string
}

// New returns the logger and a closer for its file sink.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	raw := cfg.Level
	if env := os.Getenv(EnvLogLevel); strings.TrimSpace(env) != "" {
		raw = env
	}
	level, ok := ParseLevel(raw)
	if !ok {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("unknown log level %q", raw)
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}
	if cfg.Dir != "" {
		f := NewDailyFile(cfg.Dir, "marswalk")
		writers = append(writers, f)
		closer = f
	}
	if cfg.Console {
		out := cfg.ConsoleOut
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	app := cfg.App
	if app == "" {
		app = "marswalk"
	}
	logger := zerolog.New(w).Level(level).With().Timestamp().Str("app", app).Logger()
	return logger, closer, nil
}

// ParseLevel accepts trace, debug, info, warn, error and disabled plus a few aliases.
// An empty string means info.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zerolog.InfoLevel, true
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// DailyFile appends to <dir>/<prefix>-YYYY-MM-DD.log and switches files when the UTC date
// changes.
type DailyFile struct {
	dir    string
	prefix string
	now    func() time.Time

	mu     sync.Mutex
	curDay string
	f      *os.File
}

func NewDailyFile(dir, prefix string) *DailyFile {
	return &DailyFile{dir: dir, prefix: prefix, now: time.Now}
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := d.now().UTC().Format("2006-01-02")
	if day != d.curDay || d.f == nil {
		if err := d.rotateLocked(day); err != nil {
			return 0, err
		}
	}
	return d.f.Write(p)
}

func (d *DailyFile) rotateLocked(day string) error {
	if d.f != nil {
		_ = d.f.Close()
		d.f = nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(d.PathForDay(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	d.f = f
	d.curDay = day
	return nil
}

func (d *DailyFile) PathForDay(day string) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s-%s.log", d.prefix, day))
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
