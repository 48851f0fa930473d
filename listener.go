package asynctrack

// CallbackFlag records which of the four lifecycle callbacks a Listener
// supplies, derived once at construction time from which Callbacks fields
// are non-nil.
type CallbackFlag uint8

const (
	CallbackCreate CallbackFlag = 1 << 0
	CallbackBefore CallbackFlag = 1 << 1
	CallbackAfter  CallbackFlag = 1 << 2
	CallbackError  CallbackFlag = 1 << 3
)

// Has reports whether flags contains every bit in want.
func (flags CallbackFlag) Has(want CallbackFlag) bool {
	return flags&want == want
}

// CreateFunc is invoked during the CREATE phase for a newly constructed
// Context. Its return value, if non-nil, becomes the listener's storage
// slot for that context; a nil return falls back to the listener's
// initial_data.
type CreateFunc func(initialData any, providerName string) any

// BeforeFunc is invoked during the BEFORE phase, immediately before a
// context's callback runs.
type BeforeFunc func(ctx *Context, data any)

// AfterFunc is invoked during the AFTER phase, immediately after a
// context's callback returns.
type AfterFunc func(ctx *Context, data any)

// ErrorFunc is invoked when an exception propagates out of a context's
// callback, before AFTER would otherwise run. A true return marks the
// exception as handled.
type ErrorFunc func(ctx *Context, data any, err error) bool

// Callbacks groups the four optional lifecycle hooks a Listener may supply.
// Any subset may be nil; CallbackFlag is derived from which are set.
type Callbacks struct {
	Create CreateFunc
	Before BeforeFunc
	After  AfterFunc
	Error  ErrorFunc
}

// flags derives the CallbackFlag set from which fields of c are non-nil.
func (c Callbacks) flags() CallbackFlag {
	var f CallbackFlag
	if c.Create != nil {
		f |= CallbackCreate
	}
	if c.Before != nil {
		f |= CallbackBefore
	}
	if c.After != nil {
		f |= CallbackAfter
	}
	if c.Error != nil {
		f |= CallbackError
	}
	return f
}

// Listener is an installed observer of asynchronous-operation lifecycles.
// It is immutable after construction: all fields are set once by
// CreateListener and never mutated afterward, so a *Listener may be shared
// freely across contexts without synchronization.
type Listener struct {
	id            uint64
	callbacks     Callbacks
	callbackFlags CallbackFlag
	initialData   any
	watchMask     Provider
}

// ListenerOption configures optional Listener construction parameters.
type ListenerOption interface {
	applyListener(*listenerConfig)
}

type listenerConfig struct {
	initialData any
	watchMask   Provider
	hasMask     bool
}

type listenerOptionFunc func(*listenerConfig)

func (f listenerOptionFunc) applyListener(cfg *listenerConfig) { f(cfg) }

// WithInitialData sets the listener's initial_data, used as the per-context
// storage value whenever no Create callback overrides it (or none is
// supplied). Defaults to nil.
func WithInitialData(data any) ListenerOption {
	return listenerOptionFunc(func(cfg *listenerConfig) {
		cfg.initialData = data
	})
}

// WithWatchMask sets which providers the listener observes. Defaults to
// [WatchAll] when omitted.
func WithWatchMask(mask Provider) ListenerOption {
	return listenerOptionFunc(func(cfg *listenerConfig) {
		cfg.watchMask = mask
		cfg.hasMask = true
	})
}

// CreateListener constructs a new Listener Record. callbacks may leave any
// subset of its four fields nil; callback_flags is derived from whichever
// are set. id is assigned from the process-wide monotonic counter.
//
// Unlike the source, callbacks is a concrete struct rather than an
// arbitrary value, so the "non-record callbacks" caller-contract error has
// no Go analogue here — the compiler already rejects it. [AddListener]
// still reports a [TypeError] for its "record or already-constructed
// Listener" argument, since that one genuinely accepts either shape.
func CreateListener(callbacks Callbacks, opts ...ListenerOption) *Listener {
	cfg := listenerConfig{watchMask: WatchAll}
	for _, opt := range opts {
		if opt != nil {
			opt.applyListener(&cfg)
		}
	}
	return &Listener{
		id:            nextListenerID(),
		callbacks:     callbacks,
		callbackFlags: callbacks.flags(),
		initialData:   cfg.initialData,
		watchMask:     cfg.watchMask,
	}
}

// ID returns the listener's stable, process-wide unique identity.
func (l *Listener) ID() uint64 { return l.id }

// WatchMask returns the provider bits this listener observes.
func (l *Listener) WatchMask() Provider { return l.watchMask }

// CallbackFlags returns which of the four callbacks this listener supplies.
func (l *Listener) CallbackFlags() CallbackFlag { return l.callbackFlags }

// InitialData returns the listener's default per-context storage value.
func (l *Listener) InitialData() any { return l.initialData }
