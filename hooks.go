package asynctrack

import (
	"os"
	"sync"
	"sync/atomic"
)

// defaultExitFunc is the default WithExitFunc target: a real process exit,
// matching §7's "force-initiate process termination" for a panicking ERROR
// callback.
func defaultExitFunc(code int) { os.Exit(code) }

// HookMetrics tracks per-Provider phase latencies and lifecycle counters for
// an AsyncHooks instance. It is the AsyncHooks-level counterpart to the
// scheduler's Metrics (see metrics.go): independent of it, since the
// scheduler has no concept of Providers or the four-callback protocol.
//
// Like LatencyMetrics, phase durations are estimated with the P-Square
// algorithm (psquare.go) rather than retained and sorted, so recording a
// sample is O(1) regardless of how long the hooks have been running.
type HookMetrics struct {
	mu sync.Mutex

	// phaseLatency is keyed by Provider so a caller can tell "TCP creates are
	// slow" apart from "TIMER befores are slow". Built lazily per Provider on
	// first Record, same rationale as Metrics.tps.
	phaseLatency map[Provider]*pSquareMultiQuantile

	activeContexts  atomic.Int64
	leakedContexts  atomic.Uint64
	attachCount     atomic.Uint64
	detachCount     atomic.Uint64
	errorsHandled   atomic.Uint64
	errorsUnhandled atomic.Uint64
}

func newHookMetrics() *HookMetrics {
	return &HookMetrics{phaseLatency: make(map[Provider]*pSquareMultiQuantile)}
}

// recordPhase folds a phase-duration sample (in milliseconds, matching
// Performance.Now's unit) into the quantile estimator for provider.
func (m *HookMetrics) recordPhase(provider Provider, durationMs float64) {
	m.mu.Lock()
	q, ok := m.phaseLatency[provider]
	if !ok {
		q = newPSquareMultiQuantile(0.5, 0.9, 0.99)
		m.phaseLatency[provider] = q
	}
	q.Update(durationMs)
	m.mu.Unlock()
}

// PhaseLatency returns the p50/p90/p99 phase duration in milliseconds
// observed for provider, and the sample count. ok is false if no samples
// have been recorded for that provider yet.
func (m *HookMetrics) PhaseLatency(provider Provider) (p50, p90, p99 float64, count int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, exists := m.phaseLatency[provider]
	if !exists || q.Count() == 0 {
		return 0, 0, 0, 0, false
	}
	return q.Quantile(0), q.Quantile(1), q.Quantile(2), q.Count(), true
}

// ActiveContexts returns the number of contexts currently tracked (created
// but not yet leaked-and-swept or unloaded-and-forgotten).
func (m *HookMetrics) ActiveContexts() int64 { return m.activeContexts.Load() }

// LeakedContexts returns the running total of contexts the registry's
// scavenger found collected, or still reachable, without ever being
// unloaded.
func (m *HookMetrics) LeakedContexts() uint64 { return m.leakedContexts.Load() }

// AttachCount returns the total number of successful Attach calls.
func (m *HookMetrics) AttachCount() uint64 { return m.attachCount.Load() }

// DetachCount returns the total number of Detach calls that removed a
// listener from at least one context.
func (m *HookMetrics) DetachCount() uint64 { return m.detachCount.Load() }

// ErrorsHandled returns the number of HandleError calls that returned true.
func (m *HookMetrics) ErrorsHandled() uint64 { return m.errorsHandled.Load() }

// ErrorsUnhandled returns the number of HandleError calls that returned
// false (including re-entrant calls rejected by in_error_tick).
func (m *HookMetrics) ErrorsUnhandled() uint64 { return m.errorsUnhandled.Load() }

// Option configures an AsyncHooks instance.
type Option interface {
	applyHooks(*hooksOptions)
}

type hooksOptions struct {
	logger         Logger
	metricsEnabled bool
	exitFunc       func(code int)
}

type hooksOptionFunc func(*hooksOptions)

func (f hooksOptionFunc) applyHooks(o *hooksOptions) { f(o) }

// WithHooksLogger injects a Logger that AsyncHooks uses to report user
// ERROR-callback panics and other operational events. Defaults to the
// package's global logger (see SetStructuredLogger) when omitted.
func WithHooksLogger(logger Logger) Option {
	return hooksOptionFunc(func(o *hooksOptions) { o.logger = logger })
}

// WithHooksMetrics enables HookMetrics collection, retrievable via
// AsyncHooks.Metrics. Off by default: recording a P-Square sample on every
// phase is cheap but not free, and most callers never read the result.
func WithHooksMetrics(enabled bool) Option {
	return hooksOptionFunc(func(o *hooksOptions) { o.metricsEnabled = enabled })
}

// WithExitFunc overrides the function invoked when a user ERROR callback
// itself panics (§7's "force-initiate process termination"). Defaults to
// os.Exit(1); tests substitute a function that records the call instead of
// killing the test binary.
func WithExitFunc(fn func(code int)) Option {
	return hooksOptionFunc(func(o *hooksOptions) { o.exitFunc = fn })
}

func resolveHooksOptions(opts []Option) *hooksOptions {
	cfg := &hooksOptions{exitFunc: defaultExitFunc}
	for _, opt := range opts {
		if opt != nil {
			opt.applyHooks(cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = getGlobalLogger()
	}
	return cfg
}

// AsyncHooks is the Lifecycle Protocol: the state machine that snapshots
// listener queues onto newly created asynchronous operations and drives
// their create/before/after/error callbacks. Exactly one instance owns the
// single contextStack, so — per this package's single-threaded cooperative
// model — all of its exported methods are meant to be called from one
// execution goroutine. It takes no internal lock of its own for that
// reason, matching the teacher Loop's lock-free tick/run discipline; the one
// exception is registry, the leak-detection contextRegistry used by Create
// and Unload, which guards its own state with a mutex (see registry.go).
type AsyncHooks struct {
	stack    *contextStack
	registry *contextRegistry
	events   *EventTarget
	perf     *Performance

	logger   Logger
	metrics  *HookMetrics
	exitFunc func(code int)

	inAsyncTick bool
	inErrorTick bool
}

// NewAsyncHooks constructs an AsyncHooks with a fresh Global Context active.
func NewAsyncHooks(opts ...Option) *AsyncHooks {
	cfg := resolveHooksOptions(opts)

	h := &AsyncHooks{
		stack:    newContextStack(),
		registry: newContextRegistry(),
		events:   NewEventTarget(),
		perf:     NewPerformance(),
		logger:   cfg.logger,
		exitFunc: cfg.exitFunc,
	}
	if cfg.metricsEnabled {
		h.metrics = newHookMetrics()
	}
	return h
}

// Status returns the current Status Word.
func (h *AsyncHooks) Status() StatusWord { return h.stack.Status() }

// Active returns the currently active Context.
func (h *AsyncHooks) Active() *Context { return h.stack.Active() }

// Depth returns the number of suspended contexts.
func (h *AsyncHooks) Depth() int { return h.stack.Depth() }

// Metrics returns the HookMetrics snapshot handle, or nil if the instance
// was not constructed with WithHooksMetrics(true). Counters and latency
// quantiles update live; there is no separate "Sample" step, unlike the
// scheduler's Metrics.
func (h *AsyncHooks) Metrics() *HookMetrics { return h.metrics }

// Events returns the EventTarget that dispatches "context-create" and
// "context-destroy" notifications, independent of the four-callback
// protocol (see eventtarget.go).
func (h *AsyncHooks) Events() *EventTarget { return h.events }

// ContextEventDetail is the detail payload for "context-create" and
// "context-destroy" events, carrying the Context and its originating
// Provider for observers that only want to watch the protocol from outside.
type ContextEventDetail struct {
	Context  *Context
	Provider Provider
}

// Scavenge runs one batch of the leak-detection registry's GC sweep,
// folding any newly discovered leaks into HookMetrics.LeakedContexts. See
// contextRegistry.Scavenge for the algorithm.
func (h *AsyncHooks) Scavenge(batchSize int) {
	before := h.registry.LeakCount()
	h.registry.Scavenge(batchSize)
	if h.metrics != nil {
		if after := h.registry.LeakCount(); after > before {
			h.metrics.leakedContexts.Add(after - before)
		}
	}
}

// Create is the CREATE phase (§4.5). provider identifies the category of
// asynchronous resource new_context belongs to.
//
// Precondition: the active context must have a non-empty listener sequence
// — the external resource constructor calling this is expected to have
// consulted the Status Word first and skipped the call otherwise. Violating
// this is an internal invariant violation, not a caller-contract error: it
// signals a bug in the native collaborator, so it panics rather than
// returning an error (see InvariantViolationError; this mirrors §7's "fatal
// process abort", the least disruptive Go analogue of aborting).
func (h *AsyncHooks) Create(provider Provider) *Context {
	active := h.stack.active
	if len(active.listeners) == 0 {
		panic(&InvariantViolationError{
			Message: "asynctrack: Create called with an empty active listener queue",
		})
	}

	var perfStart float64
	if h.metrics != nil {
		perfStart = h.perf.Now()
	}

	ctx := newContext(provider)
	ctx.listeners = make([]*Listener, 0, len(active.listeners))

	h.inAsyncTick = true
	for _, l := range active.listeners {
		ctx.listeners = append(ctx.listeners, l)
		ctx.watchedAggregate |= l.watchMask

		if l.callbacks.Create == nil || !provider.Watches(l.watchMask) {
			ctx.slots[l.id] = l.initialData
			continue
		}

		result := l.callbacks.Create(l.initialData, provider.String())
		if result == nil {
			ctx.slots[l.id] = l.initialData
		} else {
			ctx.slots[l.id] = result
		}
	}
	h.inAsyncTick = false

	// Propagated wholesale from the parent, not recomputed: this preserves
	// error-only listeners that a provider mismatch would otherwise zero out
	// above (they never populate callbackFlagAggregate via the loop, since
	// that loop only ORs watch masks, not callback flags).
	ctx.callbackFlagAggregate = active.callbackFlagAggregate

	h.registry.Track(ctx)

	if h.metrics != nil {
		h.metrics.activeContexts.Add(1)
		h.metrics.recordPhase(provider, h.perf.Now()-perfStart)
	}

	h.events.DispatchEvent(NewCustomEvent("context-create", ContextEventDetail{Context: ctx, Provider: provider}).EventPtr())

	return ctx
}

// Load is the BEFORE phase (§4.5). Invoked immediately before ctx's
// callback runs.
func (h *AsyncHooks) Load(ctx *Context) {
	if ctx == nil || ctx.listeners == nil {
		// nil means Create never populated a listener snapshot at all.
		return
	}
	if len(ctx.listeners) == 0 {
		// Non-nil but empty: the snapshot was taken, then emptied (e.g. all
		// listeners detached before this callback fired).
		return
	}

	var perfStart float64
	if h.metrics != nil {
		perfStart = h.perf.Now()
	}

	h.stack.push(ctx)

	if !ctx.provider.Watches(ctx.watchedAggregate) || !ctx.callbackFlagAggregate.Has(CallbackBefore) {
		return
	}

	h.inAsyncTick = true
	for _, l := range ctx.listeners {
		if !ctx.provider.Watches(l.watchMask) || !l.callbackFlags.Has(CallbackBefore) {
			continue
		}
		data := ctx.slots[l.id]
		l.callbacks.Before(ctx, data)
	}
	h.inAsyncTick = false

	if h.metrics != nil {
		h.metrics.recordPhase(ctx.provider, h.perf.Now()-perfStart)
	}
}

// Unload is the AFTER phase (§4.5). Invoked immediately after ctx's
// callback returns.
func (h *AsyncHooks) Unload(ctx *Context) {
	if ctx == nil {
		return
	}

	var perfStart float64
	if h.metrics != nil {
		perfStart = h.perf.Now()
	}

	if ctx.provider.Watches(ctx.watchedAggregate) && ctx.callbackFlagAggregate.Has(CallbackAfter) {
		h.inAsyncTick = true
		for _, l := range ctx.listeners {
			if !ctx.provider.Watches(l.watchMask) || !l.callbackFlags.Has(CallbackAfter) {
				continue
			}
			data := ctx.slots[l.id]
			l.callbacks.After(ctx, data)
		}
		h.inAsyncTick = false
	}

	h.finishUnload(ctx)

	if h.metrics != nil {
		h.metrics.recordPhase(ctx.provider, h.perf.Now()-perfStart)
	}
}

// finishUnload pops the stack and, the first time it is called for ctx,
// marks it unloaded, forgets it from the leak registry, updates
// HookMetrics' live-context gauge, and dispatches "context-destroy". Later
// calls only pop: a Context reused across repeated firings (e.g. a
// SetInterval's Context, Loaded/Unloaded once per tick) must not be torn
// down again on every firing.
func (h *AsyncHooks) finishUnload(ctx *Context) {
	alreadyUnloaded := ctx.Unloaded()

	ctx.markUnloaded()
	h.stack.pop()

	if alreadyUnloaded {
		return
	}

	h.registry.Forget(ctx.registryID)

	if h.metrics != nil {
		h.metrics.activeContexts.Add(-1)
	}

	h.events.DispatchEvent(NewCustomEvent("context-destroy", ContextEventDetail{Context: ctx, Provider: ctx.provider}).EventPtr())
}

// HandleError is the ERROR hook (§4.5): invoked by the runtime's
// fatal-exception path before Unload would otherwise run. Returns whether
// some listener reported the error as handled.
//
// If a listener's own Error callback panics, this force-initiates process
// termination per §7 (the "user error-callback failures" row): it invokes
// the configured exit function with code 1 and stops iterating remaining
// listeners, but still runs its own cleanup (clearing in_error_tick,
// unloading, popping) before returning — mirroring the source's
// try/finally shape, where the exit call does not itself unwind the stack.
func (h *AsyncHooks) HandleError(err error) (handled bool) {
	active := h.stack.active

	if h.inErrorTick || !active.callbackFlagAggregate.Has(CallbackError) {
		if h.metrics != nil {
			h.metrics.errorsUnhandled.Add(1)
		}
		return false
	}

	h.inErrorTick = true
	for _, l := range active.listeners {
		if !l.callbackFlags.Has(CallbackError) {
			continue
		}
		ok, panicked := h.invokeErrorCallback(l, active, err)
		if ok {
			handled = true
		}
		if panicked {
			// §4.5/§7: a panicking error callback force-exits and skips the
			// remaining listeners rather than continuing the loop.
			break
		}
	}
	h.inErrorTick = false

	h.finishUnload(active)

	handled = handled && !h.inAsyncTick

	if h.metrics != nil {
		if handled {
			h.metrics.errorsHandled.Add(1)
		} else {
			h.metrics.errorsUnhandled.Add(1)
		}
	}

	return handled
}

// invokeErrorCallback calls l's Error callback, catching a panic raised by
// the callback itself and routing it to the configured exit function rather
// than letting it propagate — see HandleError's doc comment. The panicked
// return tells HandleError to stop iterating the remaining listeners.
func (h *AsyncHooks) invokeErrorCallback(l *Listener, ctx *Context, err error) (result bool, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Log(LogEntry{
				Level:    LevelError,
				Category: "asynctrack.hooks",
				Message:  "ERROR callback panicked; terminating",
				Err:      &PanicError{Value: r},
			})
			h.exitFunc(1)
			result = false
			panicked = true
		}
	}()
	data := ctx.slots[l.id]
	return l.callbacks.Error(ctx, data, err), false
}

// AddListener attaches a Listener to the currently active context. If
// already attached (a slot is already present for its id), this is a no-op.
// callbacksOrListener accepts either a *Listener (attached as-is) or a
// Callbacks value (a new Listener is constructed from it via
// CreateListener, with opts forwarded); passing any other type is a
// caller-contract error.
func AddListener(h *AsyncHooks, callbacksOrListener any, opts ...ListenerOption) (*Listener, error) {
	var l *Listener
	switch v := callbacksOrListener.(type) {
	case *Listener:
		l = v
	case Callbacks:
		l = CreateListener(v, opts...)
	default:
		return nil, &TypeError{Message: "asynctrack: AddListener requires a *Listener or Callbacks value"}
	}
	h.Attach(l)
	return l, nil
}

// RemoveListener detaches l from the active context and every suspended
// context on the stack. record must be a *Listener; anything else is a
// caller-contract error.
func RemoveListener(h *AsyncHooks, record any) error {
	l, ok := record.(*Listener)
	if !ok {
		return &TypeError{Message: "asynctrack: RemoveListener requires a *Listener"}
	}
	h.Detach(l)
	return nil
}

// Attach installs l onto the active context. A no-op if l is already
// attached there.
func (h *AsyncHooks) Attach(l *Listener) {
	active := h.stack.active
	if _, ok := active.slots[l.id]; ok {
		return
	}

	active.listeners = append(active.listeners, l)
	active.slots[l.id] = l.initialData
	active.callbackFlagAggregate |= l.callbackFlags
	active.watchedAggregate |= l.watchMask

	h.stack.syncStatus()

	if h.metrics != nil {
		h.metrics.attachCount.Add(1)
	}
}

// Detach removes l from the active context and from every context
// currently suspended on the stack. For each context where l was attached,
// aggregates are recomputed by OR-folding the survivors (not merely
// cleared), since other listeners may share the same bits. If removal
// empties a context's listener sequence and that context has an optional
// teardown hook registered (see Context.OnTeardown), the hook is invoked,
// letting the owning native resource release its attachment.
func (h *AsyncHooks) Detach(l *Listener) {
	removedAny := false

	for _, ctx := range h.stack.allContexts() {
		if !ctx.hasListener(l.id) {
			continue
		}

		for i, cand := range ctx.listeners {
			if cand.id == l.id {
				ctx.listeners = append(ctx.listeners[:i], ctx.listeners[i+1:]...)
				break
			}
		}
		delete(ctx.slots, l.id)
		ctx.recomputeAggregates()
		removedAny = true

		if len(ctx.listeners) == 0 && ctx.teardown != nil {
			ctx.teardown()
		}
	}

	if removedAny {
		h.stack.syncStatus()
		if h.metrics != nil {
			h.metrics.detachCount.Add(1)
		}
	}
}
