package logs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Logger logger interface
type Logger interface {
	Debug(ctx context.Context, msg string, args ...interface{})
	Info(ctx context.Context, msg string, args ...interface{})
	Warn(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}

// LogLevel log level
type LogLevel int

const (
	//Debug enable debug or above log output
	Debug LogLevel = 0
	//Info enable info or above log output
	Info LogLevel = 1
	//Warn enable warn or above log output
	Warn LogLevel = 2
	//Error enable error or above log output
	Error LogLevel = 3
)

func (ll LogLevel) String() string {
	if ll == Debug {
		return "DEBUG"
	} else if ll == Info {
		return "INFO"
	} else if ll == Warn {
		return "WARN"
	} else if ll == Error {
		return "ERROR"
	}
	return ""
}

type runIdKey struct{}

//WithRunId tags ctx so every line logged with it carries the run id
func WithRunId(ctx context.Context, runId string) context.Context {
	return context.WithValue(ctx, runIdKey{}, runId)
}

//RunId returns the run id ctx was tagged with, if any
func RunId(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIdKey{}).(string)
	return id
}

type defaultLogger struct {
	mu       sync.Mutex
	writer   io.StringWriter
	logLevel LogLevel
}

//NewLogger writes "time [LEVEL] file:line [runId] msg" lines at logLevel or above
func NewLogger(writer io.StringWriter, logLevel LogLevel) *defaultLogger {
	return &defaultLogger{writer: writer, logLevel: logLevel}
}

func (l *defaultLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, Debug, msg, args)
}

func (l *defaultLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, Info, msg, args)
}

func (l *defaultLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, Warn, msg, args)
}

func (l *defaultLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, Error, msg, args)
}

func (l *defaultLogger) log(ctx context.Context, level LogLevel, msg string, args []interface{}) {
	if level < l.logLevel {
		return
	}
	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05.000000"))
	fmt.Fprintf(&sb, " [%s] %s ", level, fileLine())
	if id := RunId(ctx); id != "" {
		fmt.Fprintf(&sb, "[%s] ", id)
	}
	fmt.Fprintf(&sb, msg, args...)
	sb.WriteByte('\n')
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.WriteString(sb.String())
}

var seperatorReg = regexp.MustCompile("[/\\\\]")

//fileLine is the caller of the public logging method
func fileLine() string {
	_, file, line, ok := runtime.Caller(3)
	if ok {
		idx := seperatorReg.FindAllStringIndex(file, -1)
		if len(idx) > 0 {
			file = file[idx[len(idx)-1][1]:]
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}

type slogLogger struct {
	l *slog.Logger
}

//NewSlogLogger adapt a *slog.Logger to Logger, messages are formatted before being handed to slog
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (l *slogLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

func (l *slogLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, slog.LevelInfo, msg, args)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

func (l *slogLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.log(ctx, slog.LevelError, msg, args)
}

func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, args []interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.l.Enabled(ctx, level) {
		return
	}
	if id := RunId(ctx); id != "" {
		l.l.Log(ctx, level, fmt.Sprintf(msg, args...), "runId", id)
		return
	}
	l.l.Log(ctx, level, fmt.Sprintf(msg, args...))
}

//NewTintLogger build a colored slog logger writing to w, verbose enables debug level
func NewTintLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z"))
			}
			return a
		},
	}))
}
