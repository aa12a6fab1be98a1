package utils

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	base         = newBase()
	debugEnabled atomic.Bool
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	l.SetLevel(logrus.DebugLevel)
	debugEnabled.Store(os.Getenv("DEBUG") == "true")
	return l
}

// SetOutput 重定向所有日志输出
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetDebug 打开或关闭调试日志
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

type Logger struct {
	name  string
	entry *logrus.Entry
}

func NewLogger(name string) *Logger {
	return &Logger{
		name:  name,
		entry: base.WithField("module", name),
	}
}

// WithField 返回附带额外字段的子日志器
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{name: l.name, entry: l.entry.WithField(key, value)}
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if debugEnabled.Load() {
		l.entry.Debugf(format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}
