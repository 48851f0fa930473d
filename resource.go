//go:build linux || darwin

package asynctrack

import "time"

// TimerResource and FDResource stand in for the "native bindings that
// instantiate asynchronous resources" — sockets, timers, file handles —
// that §1 explicitly places out of scope to specify, but which something
// has to drive the protocol end-to-end. Both wrap a real scheduling
// primitive from the kept scheduler (Loop.ScheduleTimer / Loop.RegisterFD)
// and carry the Create/Load/Unload calls around it, plus an AbortController
// for cooperative teardown.

// TimerResource wraps a single [Loop.ScheduleTimer] callback in the
// Lifecycle Protocol under [ProviderTimer].
type TimerResource struct {
	hooks *AsyncHooks
	loop  *Loop
	ctx   *Context
	ctrl  *AbortController
	id    TimerID
}

// NewTimerResource schedules fn to run after delay, wrapped in
// Create/Load/Unload under ProviderTimer — gated, like the Scheduler Wrap,
// on the Status Word showing someone is listening. Aborting the returned
// resource's AbortController before the timer fires cancels the underlying
// timer.
func NewTimerResource(hooks *AsyncHooks, loop *Loop, delay time.Duration, fn func()) (*TimerResource, error) {
	r := &TimerResource{hooks: hooks, loop: loop, ctrl: NewAbortController()}

	if hooks != nil && hooks.Status().ActiveQueueLength > 0 {
		r.ctx = hooks.Create(ProviderTimer)
		r.ctx.OnTeardown(func() { r.ctrl.Abort(&AbortError{Reason: "timer context detached"}) })
	}

	id, err := loop.ScheduleTimer(delay, func() {
		if r.ctrl.Signal().Aborted() {
			return
		}
		if r.ctx != nil {
			r.hooks.Load(r.ctx)
			defer r.hooks.Unload(r.ctx)
		}
		fn()
	})
	if err != nil {
		return nil, err
	}
	r.id = id

	r.ctrl.Signal().OnAbort(func(reason any) {
		_ = loop.CancelTimer(r.id)
	})

	return r, nil
}

// Abort cancels the timer if it has not yet fired.
func (r *TimerResource) Abort(reason any) { r.ctrl.Abort(reason) }

// Signal returns the resource's AbortSignal.
func (r *TimerResource) Signal() *AbortSignal { return r.ctrl.Signal() }

// FDResource wraps a single [Loop.RegisterFD] registration in the
// Lifecycle Protocol under a caller-chosen provider (typically ProviderTCP,
// ProviderUDP, ProviderPipe, or ProviderTTY depending on the descriptor's
// kind).
type FDResource struct {
	hooks *AsyncHooks
	loop  *Loop
	ctx   *Context
	ctrl  *AbortController
	fd    int
}

// NewFDResource registers fd for events, wrapping every delivered callback
// in Create/Load/Unload under provider. Unlike TimerResource, the Context is
// created once at registration (matching a socket's stable identity across
// repeated readable/writable events) and reused for every callback
// invocation, the same pattern the Scheduler Wrap uses for SetInterval.
func NewFDResource(hooks *AsyncHooks, loop *Loop, fd int, events IOEvents, provider Provider, cb func(events IOEvents)) (*FDResource, error) {
	r := &FDResource{hooks: hooks, loop: loop, fd: fd, ctrl: NewAbortController()}

	if hooks != nil && hooks.Status().ActiveQueueLength > 0 {
		r.ctx = hooks.Create(provider)
		r.ctx.OnTeardown(func() { r.ctrl.Abort(&AbortError{Reason: "fd context detached"}) })
	}

	err := loop.RegisterFD(fd, events, func(ev IOEvents) {
		if r.ctrl.Signal().Aborted() {
			return
		}
		if r.ctx != nil {
			r.hooks.Load(r.ctx)
			defer r.hooks.Unload(r.ctx)
		}
		cb(ev)
	})
	if err != nil {
		return nil, err
	}

	r.ctrl.Signal().OnAbort(func(reason any) {
		_ = loop.UnregisterFD(r.fd)
	})

	return r, nil
}

// Abort unregisters the file descriptor and marks the resource's signal
// aborted, so any in-flight or future callback invocation is skipped.
func (r *FDResource) Abort(reason any) { r.ctrl.Abort(reason) }

// Signal returns the resource's AbortSignal.
func (r *FDResource) Signal() *AbortSignal { return r.ctrl.Signal() }

// Modify updates the monitored event set for the underlying descriptor.
func (r *FDResource) Modify(events IOEvents) error {
	return r.loop.ModifyFD(r.fd, events)
}
