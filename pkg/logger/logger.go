// pkg/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level はログの重要度です
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
}

func (l Level) String() string {
	return levelNames[l]
}

// ParseLevel は設定値（"debug" / "INFO" など）をレベルに変換します。不明な値は INFO 扱いです
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarning
	case "ERROR":
		return LevelError
	}
	return LevelInfo
}

// Logger はコンポーネント名つきのロガーです
type Logger struct {
	name   string
	level  Level
	logger *log.Logger
}

// New は標準出力に書き出すロガーを生成します
func New(name string, level Level) *Logger {
	return NewWithWriter(os.Stdout, name, level)
}

// NewWithWriter は出力先を指定してロガーを生成します（テスト用）
func NewWithWriter(w io.Writer, name string, level Level) *Logger {
	return &Logger{
		name:   name,
		level:  level,
		logger: log.New(w, "", log.LstdFlags),
	}
}

// Discard は何も出力しないロガーです
func Discard() *Logger {
	return NewWithWriter(io.Discard, "discard", LevelError+1)
}

// Named は同じ出力先・レベルで名前だけ変えたロガーを返します
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: name, level: l.level, logger: l.logger}
}

// -----------------------------------------------------------------------------

func (l *Logger) Debug(format string, args ...interface{}) {
	l.print(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.print(LevelInfo, format, args...)
}

func (l *Logger) Warning(format string, args ...interface{}) {
	l.print(LevelWarning, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.print(LevelError, format, args...)
}

// -----------------------------------------------------------------------------

func (l *Logger) print(level Level, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] %s: %s", l.name, level, msg)
}
