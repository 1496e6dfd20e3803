package phi

import (
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Level is the log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Sink receives fully sanitized log lines. Implementations are provided by
// the logging subsystem and must be safe for concurrent use.
type Sink interface {
	Emit(level Level, line string)
}

// stdSink writes to the process logger with the component in brackets.
// The process logger's output is wrapped by a RedactingWriter at startup,
// which backstops any caller that bypassed the safe logger.
type stdSink struct {
	component string
}

func (s stdSink) Emit(level Level, line string) {
	log.Printf("[%s] %s %s", s.component, level, line)
}

// SafeLogger is the single integration point between application code and
// the log sink. Every message, positional argument, and named argument is
// sanitized before emission. A logging call never panics, whatever it is
// handed.
type SafeLogger struct {
	sink   Sink
	red    *Redactor
	fields *Classifier
}

// NewSafeLogger creates a safe logger for one component. A nil sink falls
// back to the process logger.
func NewSafeLogger(component string, red *Redactor, fields *Classifier, sink Sink) *SafeLogger {
	if sink == nil {
		sink = stdSink{component: component}
	}
	return &SafeLogger{sink: sink, red: red, fields: fields}
}

// Logf logs a printf-style message. The format string is redacted, then each
// positional argument is sanitized: identifiers are always replaced with the
// identifier marker (positional arguments carry no field name, so none can
// be approved), strings are redacted, numbers and bools pass through, and
// anything else is stringified and redacted.
func (l *SafeLogger) Logf(level Level, format string, args ...any) {
	defer l.recoverEmit(level)
	safe := make([]any, len(args))
	for i, a := range args {
		safe[i] = l.sanitizeArg(a)
	}
	l.sink.Emit(level, fmt.Sprintf(l.red.Redact(format), safe...))
}

// Log logs a message with named arguments. PHI-classified keys are dropped
// before anything reaches the sink; approved identifier keys keep their
// value verbatim when it really is an identifier; everything else is
// sanitized. Surviving pairs are appended to the message as sorted
// key=value pairs so approved identifiers stay visible for correlation.
func (l *SafeLogger) Log(level Level, msg string, named map[string]any) {
	defer l.recoverEmit(level)
	line := l.red.Redact(msg)

	keys := make([]string, 0, len(named))
	for k := range named {
		if l.fields.Classify(k) == ClassPHI {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+l.sanitizeNamed(k, named[k]))
	}
	if len(pairs) > 0 {
		line += " " + strings.Join(pairs, ", ")
	}
	l.sink.Emit(level, line)
}

func (l *SafeLogger) Debugf(format string, args ...any) { l.Logf(LevelDebug, format, args...) }

func (l *SafeLogger) Infof(format string, args ...any) { l.Logf(LevelInfo, format, args...) }

func (l *SafeLogger) Warnf(format string, args ...any) { l.Logf(LevelWarn, format, args...) }

func (l *SafeLogger) Errorf(format string, args ...any) { l.Logf(LevelError, format, args...) }

func (l *SafeLogger) Info(msg string, named map[string]any) { l.Log(LevelInfo, msg, named) }

func (l *SafeLogger) Warn(msg string, named map[string]any) { l.Log(LevelWarn, msg, named) }

func (l *SafeLogger) Error(msg string, named map[string]any) { l.Log(LevelError, msg, named) }

// ErrorStack logs an error with its stack trace. The error text is redacted
// before emission, and the rendered stack goes through the redactor as well
// before it reaches the sink.
func (l *SafeLogger) ErrorStack(msg string, err error, named map[string]any) {
	defer l.recoverEmit(LevelError)
	line := l.red.Redact(msg)
	if err != nil {
		line += " error=" + l.red.Redact(err.Error())
	}
	l.Log(LevelError, line, named)
	l.sink.Emit(LevelError, l.red.Redact(string(debug.Stack())))
}

// sanitizeArg handles positional arguments (no field name to check).
func (l *SafeLogger) sanitizeArg(a any) any {
	switch v := a.(type) {
	case uuid.UUID:
		return IdentifierMarker
	case string:
		return l.red.Redact(v)
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	default:
		return l.red.RedactAny(v)
	}
}

// sanitizeNamed renders the value for a surviving named argument.
func (l *SafeLogger) sanitizeNamed(key string, v any) string {
	val := FromAny(v)

	if l.fields.Classify(key) == ClassApprovedID {
		// Approved fields keep clean identifiers verbatim. A value that
		// fails identifier validation loses the exemption and is redacted
		// like any other text.
		switch val.Kind() {
		case KindIdentifier:
			return val.Identifier().String()
		case KindString:
			if _, err := uuid.Parse(val.String()); err == nil {
				return val.String()
			}
		}
		return l.red.RedactAny(v)
	}

	switch val.Kind() {
	case KindIdentifier:
		return IdentifierMarker
	case KindString:
		return l.red.Redact(val.String())
	case KindMap, KindSequence:
		return l.renderStructure(l.fields.Scrub(val))
	default:
		return l.red.Redact(val.String())
	}
}

// renderStructure renders a scrubbed map/sequence as compact JSON; JSON maps
// have sorted keys, which keeps log lines deterministic.
func (l *SafeLogger) renderStructure(v Value) string {
	b, err := json.Marshal(v.Any())
	if err != nil {
		return l.red.RedactAny(v.Any())
	}
	return l.red.Redact(string(b))
}

// recoverEmit keeps a logging call from taking down the caller. The fallback
// emit is guarded too: if the sink itself is what panicked, the entry is
// dropped silently rather than re-panicking out of the deferred call.
func (l *SafeLogger) recoverEmit(level Level) {
	if r := recover(); r != nil {
		defer func() { _ = recover() }()
		l.sink.Emit(level, fmt.Sprintf("log entry dropped: %v", r))
	}
}
