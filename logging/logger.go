package logging

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/crytic/svmfuzz/logging/colors"
	"github.com/rs/zerolog"
)

// GlobalLogger describes a Logger that is disabled by default and is configured when the fuzzer is created. Each
// package creates its own sub-logger from it, keyed by a service name, so log output can be filtered by origin.
var GlobalLogger = NewLogger(zerolog.Disabled)

// Logger describes a logging object which fans each log event out to structured and unstructured writers. Console
// output is simply an unstructured, colorized writer pointed at stdout.
type Logger struct {
	// level describes the log level
	level zerolog.Level

	// context describes the key-value pairs attached to every event emitted by this logger.
	context []string

	// structuredLogger emits JSON events to structuredWriters.
	structuredLogger zerolog.Logger

	// unstructuredLogger emits human-readable events without ANSI codes to unstructuredWriters.
	unstructuredLogger zerolog.Logger

	// unstructuredColorLogger emits human-readable, colorized events to unstructuredColorWriters.
	unstructuredColorLogger zerolog.Logger

	// structuredWriters describes the writers receiving structured (JSON) output.
	structuredWriters []io.Writer

	// unstructuredWriters describes the writers receiving unstructured output with no coloring.
	unstructuredWriters []io.Writer

	// unstructuredColorWriters describes the writers receiving unstructured, colorized output.
	unstructuredColorWriters []io.Writer
}

// LogFormat describes what format to log in
type LogFormat string

const (
	// STRUCTURED describes that logging should be done in structured JSON format
	STRUCTURED LogFormat = "structured"
	// UNSTRUCTURED describes that logging should be done in an unstructured format
	UNSTRUCTURED LogFormat = "unstructured"
)

// StructuredLogInfo describes a key-value mapping that can be used to log structured data
type StructuredLogInfo map[string]any

// NewLogger creates a new Logger with the given level and no writers. Writers are attached with AddWriter.
func NewLogger(level zerolog.Level) *Logger {
	l := &Logger{
		level:                    level,
		context:                  make([]string, 0),
		structuredWriters:        make([]io.Writer, 0),
		unstructuredWriters:      make([]io.Writer, 0),
		unstructuredColorWriters: make([]io.Writer, 0),
	}
	l.rebuild()
	return l
}

// NewSubLogger creates a new Logger which shares this logger's writers but attaches an additional key-value pair to
// every event. Each package keeps its own sub-logger so logs can be grepped by service.
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	sub := &Logger{
		level:                    l.level,
		context:                  append(slices.Clone(l.context), key, value),
		structuredWriters:        slices.Clone(l.structuredWriters),
		unstructuredWriters:      slices.Clone(l.unstructuredWriters),
		unstructuredColorWriters: slices.Clone(l.unstructuredColorWriters),
	}
	sub.rebuild()
	return sub
}

// writerList returns a pointer to the writer list for the given format and coloring.
func (l *Logger) writerList(format LogFormat, colored bool) *[]io.Writer {
	if format == STRUCTURED {
		return &l.structuredWriters
	}
	if colored {
		return &l.unstructuredColorWriters
	}
	return &l.unstructuredWriters
}

// AddWriter adds a writer which receives log output in the given format. Coloring only applies to unstructured
// output. Adding a writer that is already registered for the same format is a no-op.
func (l *Logger) AddWriter(writer io.Writer, format LogFormat, colored bool) {
	writers := l.writerList(format, colored)
	if slices.Contains(*writers, writer) {
		return
	}
	*writers = append(*writers, writer)
	l.rebuild()
}

// RemoveWriter removes a writer previously added with the same format and coloring. If the writer does not exist,
// this function is a no-op.
func (l *Logger) RemoveWriter(writer io.Writer, format LogFormat, colored bool) {
	writers := l.writerList(format, colored)
	if i := slices.Index(*writers, writer); i >= 0 {
		*writers = slices.Delete(*writers, i, i+1)
		l.rebuild()
	}
}

// rebuild recreates the underlying zerolog loggers after the writer lists, level, or context change.
func (l *Logger) rebuild() {
	// Structured output carries timestamps. Unstructured output is meant for humans and formats its own.
	l.structuredLogger = l.withContext(zerolog.New(zerolog.MultiLevelWriter(l.structuredWriters...)).With().Timestamp())

	plain := make([]io.Writer, 0, len(l.unstructuredWriters))
	for _, w := range l.unstructuredWriters {
		plain = append(plain, setupDefaultFormatting(zerolog.ConsoleWriter{Out: w, NoColor: true}, l.level))
	}
	l.unstructuredLogger = l.withContext(zerolog.New(zerolog.MultiLevelWriter(plain...)).With())

	colored := make([]io.Writer, 0, len(l.unstructuredColorWriters))
	for _, w := range l.unstructuredColorWriters {
		colored = append(colored, setupDefaultFormatting(zerolog.ConsoleWriter{Out: w}, l.level))
	}
	l.unstructuredColorLogger = l.withContext(zerolog.New(zerolog.MultiLevelWriter(colored...)).With())
}

// withContext applies the logger's key-value context and level to a zerolog context.
func (l *Logger) withContext(ctx zerolog.Context) zerolog.Logger {
	for i := 0; i+1 < len(l.context); i += 2 {
		ctx = ctx.Str(l.context[i], l.context[i+1])
	}
	return ctx.Logger().Level(l.level)
}

// Level will get the log level of the Logger
func (l *Logger) Level() zerolog.Level {
	return l.level
}

// SetLevel will update the log level of the Logger
func (l *Logger) SetLevel(level zerolog.Level) {
	l.level = level
	l.rebuild()
}

// Trace logs a trace event
func (l *Logger) Trace(args ...any) {
	l.log(zerolog.TraceLevel, args...)
}

// Debug logs a debug event
func (l *Logger) Debug(args ...any) {
	l.log(zerolog.DebugLevel, args...)
}

// Info logs an info event
func (l *Logger) Info(args ...any) {
	l.log(zerolog.InfoLevel, args...)
}

// Warn logs a warning event
func (l *Logger) Warn(args ...any) {
	l.log(zerolog.WarnLevel, args...)
}

// Error logs an error event
func (l *Logger) Error(args ...any) {
	l.log(zerolog.ErrorLevel, args...)
}

// Panic logs a panic event to every writer and then panics.
func (l *Logger) Panic(args ...any) {
	l.log(zerolog.PanicLevel, args...)
}

// log builds the console and plain messages from args and sends an event at the given level to every writer.
func (l *Logger) log(level zerolog.Level, args ...any) {
	coloredMsg, plainMsg, err, info := buildMsgs(args...)

	// Stack traces are only attached in debug mode or when panicking.
	withStack := l.level <= zerolog.DebugLevel || level == zerolog.PanicLevel

	// WithLevel never panics on its own, so every writer receives a panic event before we raise it below.
	events := []*zerolog.Event{
		l.unstructuredColorLogger.WithLevel(level),
		l.unstructuredLogger.WithLevel(level),
		l.structuredLogger.WithLevel(level),
	}
	msgs := []string{coloredMsg, plainMsg, plainMsg}
	for i, event := range events {
		if event == nil {
			continue
		}
		if err != nil {
			event = event.Err(err)
			if withStack {
				event = event.Stack()
			}
		}
		if info != nil {
			event = event.Any("info", info)
		}
		event.Msg(msgs[i])
	}

	if level == zerolog.PanicLevel {
		panic(plainMsg)
	}
}

// buildMsgs takes a variadic list of arguments of any type and returns a colorized message for console output, a
// plain message for file and structured output and, optionally, an error and a StructuredLogInfo. A colors.ColorFunc
// argument switches the color applied to subsequent arguments.
func buildMsgs(args ...any) (string, string, error, StructuredLogInfo) {
	if len(args) == 0 {
		return "", "", nil, nil
	}

	colorCtx := colors.Reset
	var coloredOutput, plainOutput strings.Builder
	var info StructuredLogInfo
	var err error

	for _, arg := range args {
		switch t := arg.(type) {
		case colors.ColorFunc:
			colorCtx = t
		case StructuredLogInfo:
			// Only one structured log info is kept per message
			info = t
		case error:
			// Only one error is kept per message
			err = t
		default:
			coloredOutput.WriteString(colorCtx(t))
			plainOutput.WriteString(fmt.Sprintf("%v", t))
		}
	}

	return coloredOutput.String(), plainOutput.String(), err, info
}

// setupDefaultFormatting applies the console formatting used throughout the fuzzer to an unstructured writer.
func setupDefaultFormatting(writer zerolog.ConsoleWriter, level zerolog.Level) zerolog.ConsoleWriter {
	// Timestamps are omitted from unstructured output
	writer.FormatTimestamp = func(i any) string {
		return ""
	}

	// Writers without color still use the same glyphs, just without ANSI codes
	bold := func(c colors.ColorFunc) colors.ColorFunc {
		if writer.NoColor {
			return colors.Reset
		}
		return c
	}

	writer.FormatLevel = func(i any) string {
		s, _ := i.(string)
		parsed, err := zerolog.ParseLevel(s)
		if err != nil {
			return s
		}

		switch parsed {
		case zerolog.TraceLevel:
			return bold(colors.CyanBold)(zerolog.LevelTraceValue)
		case zerolog.DebugLevel:
			return bold(colors.BlueBold)(zerolog.LevelDebugValue)
		case zerolog.InfoLevel:
			return bold(colors.GreenBold)(colors.LEFT_ARROW)
		case zerolog.WarnLevel:
			return bold(colors.YellowBold)(zerolog.LevelWarnValue)
		case zerolog.ErrorLevel:
			return bold(colors.RedBold)(zerolog.LevelErrorValue)
		case zerolog.FatalLevel:
			return bold(colors.RedBold)(zerolog.LevelFatalValue)
		case zerolog.PanicLevel:
			return bold(colors.RedBold)(zerolog.LevelPanicValue)
		default:
			return s
		}
	}

	// Above debug level, the service key only adds noise to console output
	if level > zerolog.DebugLevel {
		writer.FieldsExclude = []string{SERVICE_KEY}
	}

	return writer
}
