package asynctrack

import "testing"

func TestNewContextEmpty(t *testing.T) {
	c := newContext(ProviderTCP)
	if c.Provider() != ProviderTCP {
		t.Errorf("Provider() = %v, want %v", c.Provider(), ProviderTCP)
	}
	if len(c.Listeners()) != 0 {
		t.Error("fresh context should have no listeners")
	}
	if _, ok := c.Slot(1); ok {
		t.Error("fresh context should have no slots")
	}
	if c.Unloaded() {
		t.Error("fresh context should not be unloaded")
	}
}

func TestContextSlotTriState(t *testing.T) {
	c := newContext(ProviderTCP)
	if _, ok := c.Slot(7); ok {
		t.Fatal("absent slot must report ok=false")
	}
	c.slots[7] = nil
	if v, ok := c.Slot(7); !ok || v != nil {
		t.Fatalf("present-nil slot should report ok=true, nil value; got %v, %v", v, ok)
	}
	c.slots[7] = "x"
	if v, ok := c.Slot(7); !ok || v != "x" {
		t.Fatalf("present slot should return stored value; got %v, %v", v, ok)
	}
}

func TestContextMarkUnloadedIdempotentFlag(t *testing.T) {
	c := newContext(ProviderTimer)
	if c.Unloaded() {
		t.Fatal("should start unloaded=false")
	}
	c.markUnloaded()
	if !c.Unloaded() {
		t.Fatal("markUnloaded should set Unloaded() true")
	}
	c.markUnloaded()
	if !c.Unloaded() {
		t.Fatal("markUnloaded should remain idempotent")
	}
}

func TestContextRecomputeAggregates(t *testing.T) {
	l1 := CreateListener(Callbacks{Before: func(*Context, any) {}}, WithWatchMask(ProviderTCP))
	l2 := CreateListener(Callbacks{After: func(*Context, any) {}}, WithWatchMask(ProviderFS))

	c := newContext(ProviderTCP)
	c.listeners = []*Listener{l1, l2}
	c.recomputeAggregates()

	if c.watchedAggregate != ProviderTCP|ProviderFS {
		t.Errorf("watchedAggregate = %v, want %v", c.watchedAggregate, ProviderTCP|ProviderFS)
	}
	if !c.callbackFlagAggregate.Has(CallbackBefore) || !c.callbackFlagAggregate.Has(CallbackAfter) {
		t.Errorf("callbackFlagAggregate = %v, want Before|After", c.callbackFlagAggregate)
	}

	c.listeners = []*Listener{l2}
	c.recomputeAggregates()
	if c.watchedAggregate != ProviderFS {
		t.Errorf("after removing l1, watchedAggregate = %v, want %v", c.watchedAggregate, ProviderFS)
	}
	if c.callbackFlagAggregate.Has(CallbackBefore) {
		t.Error("after removing l1, Before flag should be gone")
	}
}

func TestContextOnTeardown(t *testing.T) {
	c := newContext(ProviderTimer)
	called := false
	c.OnTeardown(func() { called = true })
	if called {
		t.Fatal("OnTeardown must not fire immediately")
	}
	c.teardown()
	if !called {
		t.Fatal("registered teardown hook was not invoked")
	}
}

func TestContextHasListener(t *testing.T) {
	c := newContext(ProviderTCP)
	c.slots[5] = "data"
	if !c.hasListener(5) {
		t.Error("hasListener should find a present slot key")
	}
	if c.hasListener(6) {
		t.Error("hasListener should not find an absent slot key")
	}
}
