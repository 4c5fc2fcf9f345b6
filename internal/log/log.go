// Package log provides a leveled, structured logger on top of zap, with a
// context-aware hook chain so callers (the tracing package, in particular)
// can inject contextual fields into every log line without every call site
// threading them through explicitly.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the global logger's behavior.
type Config struct {
	Level      string `conf:"level"      yaml:"level"      json:"level"`
	Format     string `conf:"format"     yaml:"format"     json:"format"` // "json" or "console"
	Debug      bool   `conf:"debug"      yaml:"debug"      json:"debug"`
	Stacktrace bool   `conf:"stacktrace" yaml:"stacktrace" json:"stacktrace"`
}

// Field is a single structured log field. Only the subsets actually produced
// by this package's constructors are populated.
type Field struct {
	Key    string
	String string
	Int64  int64
	Bool   bool
	Err    error

	kind fieldKind
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindBool
	kindErr
	kindAny
)

func String(key, value string) Field { return Field{Key: key, String: value, kind: kindString} }

func (f Field) zap() zap.Field {
	switch f.kind {
	case kindString:
		return zap.String(f.Key, f.String)
	case kindInt:
		return zap.Int64(f.Key, f.Int64)
	case kindBool:
		return zap.Bool(f.Key, f.Bool)
	case kindErr:
		return zap.NamedError(f.Key, f.Err)
	default:
		return zap.String(f.Key, f.String)
	}
}

// Hook augments the fields attached to a log line given its context and message.
type Hook interface {
	Apply(ctx context.Context, msg string, fields ...Field) []Field
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx context.Context, msg string, fields ...Field) []Field

func (f HookFunc) Apply(ctx context.Context, msg string, fields ...Field) []Field {
	return f(ctx, msg, fields...)
}

// Logger wraps a zap.Logger and a hook chain.
type Logger struct {
	mu    sync.RWMutex
	zl    *zap.Logger
	hooks []Hook
	debug bool
}

// New builds a Logger from Config.
func New(cfg Config) *Logger {
	level := zapcore.InfoLevel
	if cfg.Debug || cfg.Level == "debug" {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if cfg.Stacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return &Logger{
		zl:    zap.New(core, opts...),
		debug: level == zapcore.DebugLevel,
	}
}

// AddHook registers a hook that runs before every log call on this logger.
func (l *Logger) AddHook(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

func (l *Logger) applyHooks(ctx context.Context, msg string, fields []Field) []Field {
	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	for _, h := range hooks {
		fields = h.Apply(ctx, msg, fields...)
	}

	return fields
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields []Field) {
	fields = l.applyHooks(ctx, msg, fields)

	zfs := make([]zap.Field, len(fields))
	for i, f := range fields {
		zfs[i] = f.zap()
	}

	if ce := l.zl.Check(level, msg); ce != nil {
		ce.Write(zfs...)
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) DebugEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.debug
}

// AsSlog adapts this logger to slog for libraries that only accept slog.Logger.
func (l *Logger) AsSlog() *slog.Logger {
	return slog.New(zapslogHandler{l: l})
}

type zapslogHandler struct{ l *Logger }

func (h zapslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level < slog.LevelInfo {
		return h.l.DebugEnabled()
	}

	return true
}

func (h zapslogHandler) Handle(ctx context.Context, r slog.Record) error {
	switch {
	case r.Level >= slog.LevelError:
		h.l.Error(ctx, r.Message)
	case r.Level >= slog.LevelWarn:
		h.l.Warn(ctx, r.Message)
	case r.Level >= slog.LevelInfo:
		h.l.Info(ctx, r.Message)
	default:
		h.l.Debug(ctx, r.Message)
	}

	return nil
}

func (h zapslogHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h zapslogHandler) WithGroup(_ string) slog.Handler      { return h }

var global atomic.Pointer[Logger]

func init() {
	global.Store(New(Config{}))
}

// SetGlobalConfig rebuilds the global logger from cfg.
func SetGlobalConfig(cfg Config) {
	global.Store(New(cfg))
}

// GetGlobalLogger returns the process-wide logger.
func GetGlobalLogger() *Logger {
	return global.Load()
}

func Debug(ctx context.Context, msg string, fields ...Field) { GetGlobalLogger().Debug(ctx, msg, fields...) }
func Info(ctx context.Context, msg string, fields ...Field)  { GetGlobalLogger().Info(ctx, msg, fields...) }
func Warn(ctx context.Context, msg string, fields ...Field)  { GetGlobalLogger().Warn(ctx, msg, fields...) }
func Error(ctx context.Context, msg string, fields ...Field) { GetGlobalLogger().Error(ctx, msg, fields...) }

// DebugEnabled reports whether the global logger is at debug level.
func DebugEnabled(_ context.Context) bool { return GetGlobalLogger().DebugEnabled() }

func Int(key string, value int) Field     { return Field{Key: key, Int64: int64(value), kind: kindInt} }
func Int64(key string, value int64) Field { return Field{Key: key, Int64: value, kind: kindInt} }
func Bool(key string, value bool) Field   { return Field{Key: key, Bool: value, kind: kindBool} }
func Err(err error) Field                 { return Field{Key: "error", Err: err, kind: kindErr} }

// Cause is Err under the name call sites in this codebase actually use when
// attaching the error that caused a log line.
func Cause(err error) Field { return Field{Key: "error", Err: err, kind: kindErr} }

// Duration renders d as its string form under key.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, String: d.String(), kind: kindString}
}

// Any stringifies an arbitrary value with fmt.Sprintf("%+v", ...). Only
// meant for the occasional diagnostic field that doesn't warrant its own
// typed constructor.
func Any(key string, value any) Field {
	return Field{Key: key, String: fmt.Sprintf("%+v", value), kind: kindString}
}

// Strings renders a string slice as a single comma-joined field.
func Strings(key string, values []string) Field {
	s := ""

	for i, v := range values {
		if i > 0 {
			s += ","
		}

		s += v
	}

	return Field{Key: key, String: s, kind: kindString}
}
