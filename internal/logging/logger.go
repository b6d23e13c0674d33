// Package logging emits the reactor's structured JSON log lines. Every line
// is stamped with the reactor's own monotonic clock.Time — the same domain
// as radar cell timestamps, command validity deadlines and marker decay —
// so a log line can be correlated against telemetry without converting
// between clock domains. Output goes to a rotating on-disk file with
// optional gzip compression of rolled copies, mirrored to stdout.
package logging

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"wheelly/internal/clock"
	"wheelly/internal/config"
)

// Level orders log verbosity.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = map[string]Level{
	"debug":   DebugLevel,
	"info":    InfoLevel,
	"warn":    WarnLevel,
	"warning": WarnLevel,
	"error":   ErrorLevel,
	"fatal":   FatalLevel,
}

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "info"
	}
}

func parseLevel(raw string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return InfoLevel, nil
	}
	level, ok := levelNames[name]
	if !ok {
		return InfoLevel, errors.New("unknown log level " + raw)
	}
	return level, nil
}

// Field is one structured attribute on a log line.
type Field struct {
	Key   string
	Value any
}

// String returns a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int returns an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 returns an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Error returns an error field carrying the error's message, or nil when
// err is nil.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Tick returns a field carrying a reactor timestamp as raw milliseconds,
// unconverted — the rest of the codebase's timestamps (radar cells, command
// deadlines, marker decay) live in the same clock.Time domain.
func Tick(key string, t clock.Time) Field { return Field{Key: key, Value: int64(t)} }

// sink is where encoded lines go: a rotating file plus mirrors in
// production, a discard in tests.
type sink interface {
	emit(line []byte) error
	Sync() error
}

// Logger stamps each line with its clock source and hands it to the sink.
// With-derived clones share the sink and source, so one serialization point
// covers every clone.
type Logger struct {
	level  Level
	clk    clock.Source
	out    sink
	fields []Field
}

var (
	globalMu     sync.RWMutex
	globalLogger = newNopLogger()
)

// New constructs the reactor logger: JSON lines stamped from source,
// written to a rotating file at cfg.Path and mirrored to stdout. The
// result also becomes the package-level fallback returned by L.
func New(cfg config.LoggingConfig, source clock.Source) (*Logger, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("logging path must be specified")
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	file, err := openLogFile(cfg)
	if err != nil {
		return nil, err
	}
	logger := &Logger{
		level:  level,
		clk:    source,
		out:    &fileSink{file: file, mirrors: []io.Writer{os.Stdout}},
		fields: []Field{String("service", "wheellyd")},
	}
	ReplaceGlobals(logger)
	return logger, nil
}

// NewTestLogger returns a logger that discards output, suitable for tests.
func NewTestLogger() *Logger { return newNopLogger() }

func newNopLogger() *Logger {
	return &Logger{level: DebugLevel, out: nopSink{}}
}

// ReplaceGlobals swaps the fallback logger returned by L.
func ReplaceGlobals(logger *Logger) {
	if logger == nil {
		return
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// L returns the current global logger.
func L() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// With returns a clone carrying additional structured fields.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return L().With(fields...)
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{level: l.level, clk: l.clk, out: l.out, fields: merged}
}

// WithTick is shorthand for With(Tick("tick", now)), the form every
// reaction-tick log site uses so a line can be correlated back to the
// telemetry stream's snapshots by the same clock.Time value.
func (l *Logger) WithTick(now clock.Time) *Logger {
	return l.With(Tick("tick", now))
}

// Sync flushes buffered output to durable storage.
func (l *Logger) Sync() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.Sync()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields...) }

// Info logs an informational message.
func (l *Logger) Info(msg string, fields ...Field) { l.log(InfoLevel, msg, fields...) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...Field) { l.log(WarnLevel, msg, fields...) }

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields...) }

// Fatal logs a fatal message, flushes, and exits the process.
func (l *Logger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if l == nil {
		L().log(level, msg, fields...)
		return
	}
	if level < l.level {
		return
	}
	entry := make(map[string]any, len(l.fields)+len(fields)+3)
	//1.- The line's own timestamp is the reactor clock, in milliseconds.
	entry["ts"] = int64(l.now())
	entry["level"] = level.String()
	entry["msg"] = msg
	for _, f := range l.fields {
		entry[f.Key] = f.Value
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = l.out.emit(append(line, '\n'))
	if level == FatalLevel {
		_ = l.out.Sync()
		os.Exit(1)
	}
}

func (l *Logger) now() clock.Time {
	if l.clk == nil {
		return 0
	}
	return l.clk.Now()
}

// fileSink serializes writes to the rotating file and best-effort mirrors.
type fileSink struct {
	mu      sync.Mutex
	file    *logFile
	mirrors []io.Writer
}

func (s *fileSink) emit(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.write(line); err != nil {
		return err
	}
	for _, m := range s.mirrors {
		_, _ = m.Write(line)
	}
	return nil
}

func (s *fileSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.sync()
}

type nopSink struct{}

func (nopSink) emit([]byte) error { return nil }
func (nopSink) Sync() error       { return nil }

// stampLayout names rolled files so that lexicographic order equals
// chronological order, letting prune work on names alone.
const stampLayout = "20060102T150405.000"

// logFile is the rotating on-disk sink: one active file, rolled when a
// write would push it past sizeLimit or the active file has outlived
// maxAge. Rolled copies are gzip-compressed and pruned down to keep
// backups. Callers serialize access (fileSink holds the lock).
type logFile struct {
	path      string
	sizeLimit int64
	keep      int
	maxAge    time.Duration
	compress  bool

	f        *os.File
	written  int64
	openedAt time.Time
}

func openLogFile(cfg config.LoggingConfig) (*logFile, error) {
	if cfg.MaxSizeMB <= 0 {
		return nil, errors.New("log file size limit must be positive")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &logFile{
		path:      cfg.Path,
		sizeLimit: int64(cfg.MaxSizeMB) * 1024 * 1024,
		keep:      cfg.MaxBackups,
		maxAge:    time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		compress:  cfg.Compress,
		f:         f,
		written:   info.Size(),
		openedAt:  info.ModTime(),
	}, nil
}

func (w *logFile) write(p []byte) error {
	oversized := w.written+int64(len(p)) > w.sizeLimit
	aged := w.maxAge > 0 && !w.openedAt.IsZero() && time.Since(w.openedAt) > w.maxAge
	if oversized || aged {
		if err := w.roll(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(p)
	w.written += int64(n)
	return err
}

func (w *logFile) sync() error {
	if w.f == nil {
		return nil
	}
	return w.f.Sync()
}

// roll archives the active file under a sortable timestamp suffix,
// compresses the archive when configured, prunes old archives, and reopens
// a fresh active file.
func (w *logFile) roll() error {
	if err := w.f.Close(); err != nil {
		return err
	}
	archived := w.path + "." + time.Now().UTC().Format(stampLayout)
	if err := os.Rename(w.path, archived); err != nil {
		return err
	}
	if w.compress {
		if gzipFile(archived) == nil {
			_ = os.Remove(archived)
		}
	}
	w.prune()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.written = 0
	w.openedAt = time.Now()
	return nil
}

// prune removes archived files beyond the keep count and past the age
// window. The rotation stamp embedded in each name sorts lexicographically,
// so both checks work on names alone without stat calls.
func (w *logFile) prune() {
	dir := filepath.Dir(w.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	prefix := filepath.Base(w.path) + "."
	var archived []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			archived = append(archived, e.Name())
		}
	}
	//1.- Newest first: names embed the stamp, so a reverse string sort is a
	// reverse chronological sort.
	sort.Sort(sort.Reverse(sort.StringSlice(archived)))
	if w.keep > 0 && len(archived) > w.keep {
		for _, name := range archived[w.keep:] {
			_ = os.Remove(filepath.Join(dir, name))
		}
		archived = archived[:w.keep]
	}
	if w.maxAge > 0 {
		cutoff := prefix + time.Now().UTC().Add(-w.maxAge).Format(stampLayout)
		for _, name := range archived {
			if strings.TrimSuffix(name, ".gz") < cutoff {
				_ = os.Remove(filepath.Join(dir, name))
			}
		}
	}
}

func gzipFile(src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(src + ".gz")
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		_ = gz.Close()
		_ = out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
