package zerologger

import (
	"context"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
)

const loggerNameField = "logger"

// Logger writes gateway logs through zerolog. Variadic args are read as
// key/value pairs.
type Logger struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Trace(msg string, args ...any) { l.log(zerolog.TraceLevel, msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.log(zerolog.DebugLevel, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.log(zerolog.InfoLevel, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(zerolog.WarnLevel, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.log(zerolog.ErrorLevel, msg, args) }

// Fatal logs at fatal level without exiting the process.
func (l *Logger) Fatal(msg string, args ...any) { l.log(zerolog.FatalLevel, msg, args) }

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &Logger{logger: l.logger.With().Ctx(ctx).Logger()}
}

func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With().Fields(fields).Logger()}
}

func (l *Logger) log(level zerolog.Level, msg string, args []any) {
	event := l.logger.WithLevel(level)
	if event == nil {
		return
	}
	if len(args) > 0 {
		if len(args)%2 != 0 {
			args = append(args, "")
		}
		event = event.Fields(args)
	}
	event.Msg(strings.TrimSpace(msg))
}

// Provider hands out named child loggers of a root zerolog logger.
type Provider struct {
	root zerolog.Logger
}

func NewProvider(root zerolog.Logger) *Provider {
	return &Provider{root: root}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	return New(p.root.With().Str(loggerNameField, strings.TrimSpace(name)).Logger())
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
