package asynctrack

// StatusWord mirrors the active context's salient fields for external
// native collaborators that want to fast-path the common "nobody is
// listening" case without calling into the protocol at all. It is a fixed
// three-slot region, updated on every active-context change and on every
// attach/detach, and is read unsynchronized — this package is
// single-threaded cooperative, so that's safe by construction rather than
// by accident.
type StatusWord struct {
	ActiveProvider         Provider
	ActiveQueueLength      int
	ActiveWatchedAggregate Provider
}

// contextStack is the LIFO of suspended contexts plus the distinguished
// active slot. It is not itself exported; callers interact with it through
// AsyncHooks, which owns exactly one instance.
//
// The active context is a mutable slot, not the stack's top: entering a new
// context pushes the current active onto suspended and replaces active with
// the new one (a naive "stack with top == active" model would conflate the
// two).
type contextStack struct {
	active    *Context
	suspended []*Context
	status    StatusWord
}

// globalContext builds a fresh Global Context sentinel: empty listener
// sequence, empty slots, provider NONE, aggregates zero. A fresh instance is
// built on every full unwind rather than reusing a singleton — the previous
// one is discarded, not reused, which keeps a leaked reference to an old
// Global Context from silently continuing to observe attach/detach done
// against the new one.
func globalContext() *Context {
	return newContext(ProviderNone)
}

// newContextStack builds a stack whose active context is a fresh Global
// Context.
func newContextStack() *contextStack {
	s := &contextStack{active: globalContext()}
	s.syncStatus()
	return s
}

// syncStatus rewrites the Status Word from the current active context. The
// status word must always reflect active, so this is called at the end of
// every mutation below — push, pop, attach, detach.
func (s *contextStack) syncStatus() {
	s.status.ActiveProvider = s.active.provider
	s.status.ActiveQueueLength = len(s.active.listeners)
	s.status.ActiveWatchedAggregate = s.active.watchedAggregate
}

// Status returns a copy of the current Status Word.
func (s *contextStack) Status() StatusWord {
	return s.status
}

// Active returns the current active context.
func (s *contextStack) Active() *Context {
	return s.active
}

// Depth returns the number of suspended contexts (excludes active).
func (s *contextStack) Depth() int {
	return len(s.suspended)
}

// push suspends the current active context and makes c the new active.
func (s *contextStack) push(c *Context) {
	s.suspended = append(s.suspended, s.active)
	s.active = c
	s.syncStatus()
}

// pop restores the most recently suspended context as active, or resets to
// a fresh Global Context if the stack is empty.
func (s *contextStack) pop() {
	n := len(s.suspended)
	if n == 0 {
		s.active = globalContext()
		s.syncStatus()
		return
	}
	s.active = s.suspended[n-1]
	s.suspended[n-1] = nil
	s.suspended = s.suspended[:n-1]
	s.syncStatus()
}

// allContexts returns the active context followed by every suspended
// context, innermost first. Used by detach, which must apply to the active
// context and to every context currently suspended on the stack.
func (s *contextStack) allContexts() []*Context {
	all := make([]*Context, 0, len(s.suspended)+1)
	all = append(all, s.active)
	for i := len(s.suspended) - 1; i >= 0; i-- {
		all = append(all, s.suspended[i])
	}
	return all
}
