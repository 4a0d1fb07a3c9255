package logging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	color "git.coderun.dev/coderun/coderun/src/ansicolor"
	"git.coderun.dev/coderun/coderun/src/config"
	"git.coderun.dev/coderun/coderun/src/oops"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.ErrorStackMarshaler = oops.ZerologStackMarshaler
	Configure(config.Config)
}

// Configure sets the log level and output for the environment. Live and beta
// log one JSON object per line for the log shipper; dev logs for humans.
func Configure(cfg config.CoderunConfig) {
	if cfg.Env == config.Dev {
		log.Logger = log.Output(NewPrettyZerologWriter())
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Str("env", string(cfg.Env)).Logger()
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
}

func GlobalLogger() *zerolog.Logger {
	return &log.Logger
}

func Trace() *zerolog.Event {
	return log.Trace().Timestamp().Stack()
}

func Debug() *zerolog.Event {
	return log.Debug().Timestamp().Stack()
}

func Info() *zerolog.Event {
	return log.Info().Timestamp().Stack()
}

func Warn() *zerolog.Event {
	return log.Warn().Timestamp().Stack()
}

func Error() *zerolog.Event {
	return log.Error().Timestamp().Stack()
}

func Fatal() *zerolog.Event {
	return log.Fatal().Timestamp().Stack()
}

func With() zerolog.Context {
	return log.With().Stack()
}

type loggerContextKey struct{}

func AttachLoggerToContext(logger *zerolog.Logger, ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// Falls back to the global logger when the context carries none.
func ExtractLogger(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerContextKey{}).(*zerolog.Logger); ok && logger != nil {
			return logger
		}
	}
	return GlobalLogger()
}

// PrettyZerologWriter turns zerolog's JSON into one readable line per entry:
//
//	15:04:05 INFO  Served [GET] /watch/3 in 12.3ms  request_id="3f2c9a" status=200
//
// An error goes on its own line below, followed by its stack trace.
type PrettyZerologWriter struct {
	wd  string
	out io.Writer
}

var levelStyles = map[string]string{
	"trace": color.Gray,
	"debug": color.Gray,
	"info":  color.BgBlue,
	"warn":  color.BgYellow,
	"error": color.BgRed,
	"fatal": color.BgRed,
	"panic": color.BgRed,
}

// Shown before the other fields, in this order.
var leadingFields = []string{"request_id", "job", "status"}

func NewPrettyZerologWriter() *PrettyZerologWriter {
	wd, _ := os.Getwd()
	return &PrettyZerologWriter{
		wd:  wd,
		out: os.Stderr,
	}
}

func (w *PrettyZerologWriter) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return w.out.Write(p)
	}

	take := func(name string) interface{} {
		v := fields[name]
		delete(fields, name)
		return v
	}
	timestamp, _ := take(zerolog.TimestampFieldName).(string)
	level, _ := take(zerolog.LevelFieldName).(string)
	message, _ := take(zerolog.MessageFieldName).(string)
	errMsg, _ := take(zerolog.ErrorFieldName).(string)
	stackTrace, _ := take(zerolog.ErrorStackFieldName).([]interface{})

	var b strings.Builder
	if len(timestamp) >= len("2006-01-02T15:04:05") {
		b.WriteString(timestamp[11:19])
		b.WriteString(" ")
	}
	if level != "" {
		fmt.Fprintf(&b, "%s%s%-5s%s ", levelStyles[level], color.Bold, strings.ToUpper(level), color.Reset)
	}
	b.WriteString(message)

	var names []string
	for name := range fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := fieldRank(names[i]), fieldRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	for i, name := range names {
		if i == 0 {
			b.WriteString(" ")
		}
		value, _ := json.Marshal(fields[name])
		fmt.Fprintf(&b, " %s%s=%s%s", color.Cyan, name, color.Reset, value)
	}
	b.WriteString("\n")

	if errMsg != "" {
		fmt.Fprintf(&b, "  %s%sERROR:%s %s\n", color.Bold, color.Red, color.Reset, errMsg)
	}
	for _, frame := range stackTrace {
		frameMap, ok := frame.(map[string]interface{})
		if !ok {
			continue
		}
		file, _ := frameMap["file"].(string)
		function, _ := frameMap["function"].(string)
		line, _ := frameMap["line"].(float64)
		fmt.Fprintf(&b, "    %s (%s:%d)\n", function, strings.Replace(file, w.wd, ".", 1), int(line))
	}

	_, err := io.WriteString(w.out, b.String())
	return len(p), err
}

func fieldRank(name string) int {
	for i, leading := range leadingFields {
		if name == leading {
			return i
		}
	}
	return len(leadingFields)
}

func LogPanics(logger *zerolog.Logger) {
	if r := recover(); r != nil {
		LogPanicValue(logger, r, "recovered from panic")
	}
}

// LogPanicValue logs a recovered value with a stack trace. An oops error
// already carries the stack from where it was created.
func LogPanicValue(logger *zerolog.Logger, val interface{}, msg string) {
	if logger == nil {
		logger = GlobalLogger()
	}

	event := logger.Error()
	if err, ok := val.(error); ok {
		var oopsErr *oops.Error
		if errors.As(err, &oopsErr) {
			event.Stack().Err(err).Msg(msg)
			return
		}
		event = event.Err(err)
	} else {
		event = event.Interface("recovered", val)
	}
	event.Interface(zerolog.ErrorStackFieldName, oops.Trace()).Msg(msg)
}
