package asynctrack

import "testing"

// Scenario tests mirror the worked examples used to validate the Lifecycle
// Protocol's core state machine end-to-end, one test per scenario.

// S1 — create/before/after sequence.
func TestScenarioCreateBeforeAfterSequence(t *testing.T) {
	h := NewAsyncHooks()

	var observed []int
	l := CreateListener(Callbacks{
		Create: func(any, string) any { return "A" },
		Before: func(_ *Context, data any) {
			if data != "A" {
				t.Fatalf("before saw data = %v, want A", data)
			}
			observed = append(observed, 2)
		},
		After: func(_ *Context, data any) {
			if data != "A" {
				t.Fatalf("after saw data = %v, want A", data)
			}
			observed = append(observed, 3)
		},
	}, WithInitialData(1), WithWatchMask(ProviderTCP))
	h.Attach(l)

	ctx := h.Create(ProviderTCP)
	if v, ok := ctx.Slot(l.ID()); !ok || v != "A" {
		t.Fatalf("ctx.slots[L.id] = %v, %v; want 'A', true", v, ok)
	}

	h.Load(ctx)
	h.Unload(ctx)

	if len(observed) != 2 || observed[0] != 2 || observed[1] != 3 {
		t.Fatalf("observed = %v, want [2 3]", observed)
	}
	if h.Depth() != 0 {
		t.Fatalf("stack depth = %d, want 0", h.Depth())
	}
}

// S2 — provider filter.
func TestScenarioProviderFilter(t *testing.T) {
	h := NewAsyncHooks()

	createCalled := false
	beforeCalled := false
	afterCalled := false
	l := CreateListener(Callbacks{
		Create: func(any, string) any { createCalled = true; return "nope" },
		Before: func(*Context, any) { beforeCalled = true },
		After:  func(*Context, any) { afterCalled = true },
	}, WithInitialData("init"), WithWatchMask(ProviderFS))
	h.Attach(l)

	ctx := h.Create(ProviderTCP)
	if createCalled {
		t.Fatal("L.create must not be invoked: provider TCP is not in watch_mask FS")
	}
	if v, ok := ctx.Slot(l.ID()); !ok || v != "init" {
		t.Fatalf("ctx.slots[L.id] = %v, %v; want initial_data, true", v, ok)
	}

	h.Load(ctx)
	h.Unload(ctx)
	if beforeCalled || afterCalled {
		t.Fatal("before/after must not fire for a provider-mismatched listener")
	}
}

// S3 — nested context.
func TestScenarioNestedContext(t *testing.T) {
	h := NewAsyncHooks()

	var beforeOrder, afterOrder []Provider
	l := CreateListener(Callbacks{
		Before: func(ctx *Context, any) { beforeOrder = append(beforeOrder, ctx.Provider()) },
		After:  func(ctx *Context, any) { afterOrder = append(afterOrder, ctx.Provider()) },
	})
	h.Attach(l)

	c1 := h.Create(ProviderTCP)
	h.Load(c1)
	c2 := h.Create(ProviderTimer)
	h.Load(c2)
	h.Unload(c2)
	h.Unload(c1)

	if len(beforeOrder) != 2 || beforeOrder[0] != ProviderTCP || beforeOrder[1] != ProviderTimer {
		t.Fatalf("before order = %v, want [TCP TIMER]", beforeOrder)
	}
	if len(afterOrder) != 2 || afterOrder[0] != ProviderTimer || afterOrder[1] != ProviderTCP {
		t.Fatalf("after order = %v, want [TIMER TCP] (LIFO)", afterOrder)
	}
	if h.Depth() != 0 {
		t.Fatalf("stack depth = %d, want 0", h.Depth())
	}
}

// S4 — error handling.
func TestScenarioErrorHandling(t *testing.T) {
	h := NewAsyncHooks()

	l := CreateListener(Callbacks{
		Error: func(*Context, any, error) bool { return true },
	})
	h.Attach(l)

	ctx := h.Create(ProviderTCP)
	h.Load(ctx)

	handled := h.HandleError(errTestBoom)
	if !handled {
		t.Fatal("HandleError should report handled=true")
	}
	if h.Depth() != 0 {
		t.Fatalf("stack depth after HandleError = %d, want 0", h.Depth())
	}
	if h.inErrorTick {
		t.Fatal("in_error_tick must be false after HandleError returns")
	}
}

var errTestBoom = &TypeError{Message: "boom"}

// S5 — detach propagates down the stack.
func TestScenarioDetachPropagatesDownStack(t *testing.T) {
	h := NewAsyncHooks()

	l := CreateListener(Callbacks{Before: func(*Context, any) {}})
	h.Attach(l)

	c1 := h.Create(ProviderTCP)
	h.Load(c1)
	c2 := h.Create(ProviderTimer)
	h.Load(c2)

	h.Detach(l)

	for name, ctx := range map[string]*Context{"active (c2)": h.Active(), "suspended (c1)": c1} {
		if _, ok := ctx.Slot(l.ID()); ok {
			t.Errorf("%s: listener slot should be absent after detach", name)
		}
	}

	// unwind so the stack returns to depth 0 for other tests in the package.
	h.Unload(h.Active())
	h.Unload(h.Active())
}

// S6 — TICK matches all masks.
func TestScenarioTickMatchesAllMasks(t *testing.T) {
	h := NewAsyncHooks()

	createCalled := false
	l := CreateListener(Callbacks{
		Create: func(any, string) any { createCalled = true; return nil },
	}, WithWatchMask(ProviderTCP))
	h.Attach(l)

	h.Create(ProviderTick)
	if !createCalled {
		t.Fatal("TICK sentinel should match every watch mask, including a TCP-only one")
	}
}
