package asynctrack

import (
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// hookEvent is this package's [logiface.Event] implementation: a flat field
// bag that a hookEventWriter later translates into a LogEntry and hands off
// to a wrapped Logger. It embeds logiface.UnimplementedEvent so only the two
// mandatory methods, plus the two optional ones this package actually needs
// (AddMessage, AddError), require real bodies.
type hookEvent struct {
	logiface.UnimplementedEvent

	level   logiface.Level
	fields  map[string]any
	message string
	err     error
}

func (e *hookEvent) Level() logiface.Level { return e.level }

func (e *hookEvent) AddField(key string, val any) {
	if e.fields == nil {
		e.fields = make(map[string]any, 8)
	}
	e.fields[key] = val
}

func (e *hookEvent) AddMessage(msg string) bool {
	e.message = msg
	return true
}

func (e *hookEvent) AddError(err error) bool {
	e.err = err
	return true
}

func (e *hookEvent) reset() {
	e.level = logiface.LevelDisabled
	for k := range e.fields {
		delete(e.fields, k)
	}
	e.message = ""
	e.err = nil
}

var hookEventPool = sync.Pool{New: func() any { return new(hookEvent) }}

// hookEventFactory implements logiface.EventFactory[*hookEvent] by pulling
// from hookEventPool; hookEventReleaser (below) is its matching
// logiface.EventReleaser, returning events to the same pool.
type hookEventFactory struct{}

func (hookEventFactory) NewEvent(level logiface.Level) *hookEvent {
	e := hookEventPool.Get().(*hookEvent)
	e.level = level
	return e
}

type hookEventReleaser struct{}

func (hookEventReleaser) ReleaseEvent(e *hookEvent) {
	e.reset()
	hookEventPool.Put(e)
}

// hookEventWriter adapts a logiface.Writer[*hookEvent] onto this package's
// own Logger interface, translating each finished hookEvent into a LogEntry.
type hookEventWriter struct {
	target   Logger
	loopID   int64
	category string
}

func (w *hookEventWriter) Write(e *hookEvent) error {
	level := levelFromLogiface(e.level)
	if !w.target.IsEnabled(level) {
		return logiface.ErrDisabled
	}
	entry := LogEntry{
		Level:     level,
		Category:  w.category,
		LoopID:    w.loopID,
		Message:   e.message,
		Err:       e.err,
		Timestamp: time.Now(),
	}
	if len(e.fields) > 0 {
		entry.Context = make(map[string]interface{}, len(e.fields))
		for k, v := range e.fields {
			entry.Context[k] = v
		}
	}
	w.target.Log(entry)
	return nil
}

// levelToLogiface maps this package's four-level LogLevel onto the fuller
// syslog-derived logiface.Level scale.
func levelToLogiface(level LogLevel) logiface.Level {
	switch level {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

// levelFromLogiface is the inverse of levelToLogiface, collapsing the wider
// logiface scale back onto this package's four levels. Severities between
// the mapped points collapse to the nearest coarser bucket.
func levelFromLogiface(level logiface.Level) LogLevel {
	switch {
	case level <= logiface.LevelError:
		return LevelError
	case level <= logiface.LevelWarning:
		return LevelWarn
	case level <= logiface.LevelInformational:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// LogifaceLogger adapts a github.com/joeycumines/logiface
// *logiface.Logger onto this package's Logger interface, so AsyncHooks and
// the kept scheduler can be pointed at any logiface backend (stumpy, zerolog,
// etc.) interchangeably with the stdlib-backed DefaultLogger/WriterLogger.
type LogifaceLogger struct {
	logger *logiface.Logger[*hookEvent]
}

// NewLogifaceLogger builds a LogifaceLogger that writes through target,
// tagging every entry with loopID and category. minLevel sets the logiface
// threshold below which Build/Log are no-ops, mirroring the minimum-level
// gating the rest of this package's loggers perform.
func NewLogifaceLogger(target Logger, loopID int64, category string, minLevel LogLevel) *LogifaceLogger {
	writer := &hookEventWriter{target: target, loopID: loopID, category: category}
	return &LogifaceLogger{
		logger: logiface.New[*hookEvent](
			logiface.WithEventFactory[*hookEvent](hookEventFactory{}),
			logiface.WithEventReleaser[*hookEvent](hookEventReleaser{}),
			logiface.WithWriter[*hookEvent](writer),
			logiface.WithLevel[*hookEvent](levelToLogiface(minLevel)),
		),
	}
}

// IsEnabled reports whether level would currently reach the wrapped logger.
func (l *LogifaceLogger) IsEnabled(level LogLevel) bool {
	lv := levelToLogiface(level)
	threshold := l.logger.Level()
	return lv.Enabled() && (lv <= threshold || lv > logiface.LevelTrace)
}

// Log translates entry into a logiface modifier and dispatches it through
// the wrapped *logiface.Logger, which in turn calls back into hookEventWriter
// and the originally-wrapped Logger.
func (l *LogifaceLogger) Log(entry LogEntry) {
	_ = l.logger.Log(levelToLogiface(entry.Level), logiface.ModifierFunc[*hookEvent](func(e *hookEvent) error {
		if entry.Message != "" {
			e.AddMessage(entry.Message)
		}
		if entry.Err != nil {
			e.AddError(entry.Err)
		}
		if entry.Category != "" {
			e.AddField("category", entry.Category)
		}
		if entry.LoopID != 0 {
			e.AddField("loop_id", entry.LoopID)
		}
		if entry.TaskID != 0 {
			e.AddField("task_id", entry.TaskID)
		}
		if entry.TimerID != 0 {
			e.AddField("timer_id", entry.TimerID)
		}
		for k, v := range entry.Context {
			e.AddField(k, v)
		}
		return nil
	}))
}
