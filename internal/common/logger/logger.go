package logger

import (
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	baseMu sync.RWMutex
	base   = newBase(zapcore.InfoLevel)
)

// Logger writes one JSON line per event with the service and action attached.
type Logger struct {
	service string
	z       *zap.Logger
}

func New(service string) *Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return &Logger{service: service, z: base.With(zap.String("service", service))}
}

// NewWithCore builds a logger on an explicit core; tests pass an observer core.
func NewWithCore(service string, core zapcore.Core) *Logger {
	return &Logger{service: service, z: zap.New(core).With(zap.String("service", service))}
}

// SetLevel replaces the process-wide base logger. Loggers created before the
// call keep the old level.
func SetLevel(level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	baseMu.Lock()
	base = newBase(lvl)
	baseMu.Unlock()
	return nil
}

func Sync() {
	baseMu.RLock()
	defer baseMu.RUnlock()
	_ = base.Sync()
}

func newBase(level zapcore.Level) *zap.Logger {
	enc := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), level)
	return zap.New(core).With(zap.String("hostname", hostname()))
}

func (l *Logger) log(level zapcore.Level, action string, fields map[string]any, err error) {
	ce := l.z.Check(level, action)
	if ce == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields)+2)
	zf = append(zf, zap.String("action", action))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		zf = append(zf, zap.Any(k, fields[k]))
	}
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	ce.Write(zf...)
}

func (l *Logger) Info(action string, fields map[string]any)  { l.log(zapcore.InfoLevel, action, fields, nil) }
func (l *Logger) Debug(action string, fields map[string]any) { l.log(zapcore.DebugLevel, action, fields, nil) }
func (l *Logger) Warn(action string, fields map[string]any)  { l.log(zapcore.WarnLevel, action, fields, nil) }
func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(zapcore.ErrorLevel, action, fields, err)
}

func hostname() string { h, _ := os.Hostname(); return h }
