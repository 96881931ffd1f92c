package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level 控制日志输出级别。
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	current atomic.Int32
	std     = log.New(os.Stderr, "", log.LstdFlags|log.Lmsgprefix)
)

func init() {
	current.Store(int32(LevelInfo))
}

// SetLevel 设置全局日志级别。
func SetLevel(l Level) { current.Store(int32(l)) }

// ParseLevel 将字符串解析为级别，未知值回退到 info。
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func output(l Level, tag, format string, args ...any) {
	if l < Level(current.Load()) {
		return
	}
	std.Output(3, tag+" "+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { output(LevelDebug, "DEBUG", format, args...) }
func Infof(format string, args ...any)  { output(LevelInfo, "INFO", format, args...) }
func Warnf(format string, args ...any)  { output(LevelWarn, "WARN", format, args...) }
func Errorf(format string, args ...any) { output(LevelError, "ERROR", format, args...) }
