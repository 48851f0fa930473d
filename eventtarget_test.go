package asynctrack

import "testing"

func TestEventTargetDispatchInRegistrationOrder(t *testing.T) {
	et := NewEventTarget()
	var order []int
	et.AddEventListener("tick", func(*Event) { order = append(order, 1) })
	et.AddEventListener("tick", func(*Event) { order = append(order, 2) })

	et.DispatchEvent(NewEvent("tick"))

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("dispatch order = %v, want [1 2]", order)
	}
}

func TestEventTargetAddEventListenerOnceRemovesAfterFirstDispatch(t *testing.T) {
	et := NewEventTarget()
	calls := 0
	et.AddEventListenerOnce("abort", func(*Event) { calls++ })

	et.DispatchEvent(NewEvent("abort"))
	et.DispatchEvent(NewEvent("abort"))

	if calls != 1 {
		t.Fatalf("once listener called %d times, want 1", calls)
	}
}

func TestEventTargetRemoveEventListenerByID(t *testing.T) {
	et := NewEventTarget()
	called := false
	id := et.AddEventListener("load", func(*Event) { called = true })

	if !et.RemoveEventListenerByID("load", id) {
		t.Fatal("RemoveEventListenerByID should report true for a registered id")
	}
	et.DispatchEvent(NewEvent("load"))
	if called {
		t.Fatal("removed listener must not be invoked")
	}
}

func TestEventTargetStopImmediatePropagation(t *testing.T) {
	et := NewEventTarget()
	var secondCalled bool
	et.AddEventListener("x", func(e *Event) { e.StopImmediatePropagation() })
	et.AddEventListener("x", func(*Event) { secondCalled = true })

	et.DispatchEvent(NewEvent("x"))

	if secondCalled {
		t.Fatal("a listener calling StopImmediatePropagation must suppress later listeners")
	}
}

func TestEventPreventDefaultRespectsCancelable(t *testing.T) {
	nonCancelable := NewEvent("x")
	nonCancelable.PreventDefault()
	if nonCancelable.DefaultPrevented {
		t.Fatal("PreventDefault on a non-cancelable event must be a no-op")
	}

	cancelable := NewEventWithOptions("x", false, true)
	cancelable.PreventDefault()
	if !cancelable.DefaultPrevented {
		t.Fatal("PreventDefault on a cancelable event should set DefaultPrevented")
	}
}

func TestCustomEventDetail(t *testing.T) {
	ce := NewCustomEvent("context-create", ContextEventDetail{Provider: ProviderTCP})
	d, ok := ce.Detail().(ContextEventDetail)
	if !ok || d.Provider != ProviderTCP {
		t.Fatalf("Detail() = %#v, want ContextEventDetail{Provider: ProviderTCP}", ce.Detail())
	}
}
