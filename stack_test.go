package asynctrack

import "testing"

func TestNewContextStackStartsWithGlobal(t *testing.T) {
	s := newContextStack()
	if s.Active().Provider() != ProviderNone {
		t.Errorf("initial active provider = %v, want NONE", s.Active().Provider())
	}
	if s.Depth() != 0 {
		t.Errorf("initial depth = %d, want 0", s.Depth())
	}
	want := StatusWord{ActiveProvider: ProviderNone, ActiveQueueLength: 0, ActiveWatchedAggregate: ProviderNone}
	if s.Status() != want {
		t.Errorf("initial status = %+v, want %+v", s.Status(), want)
	}
}

func TestContextStackPushPop(t *testing.T) {
	s := newContextStack()
	global := s.Active()

	c1 := newContext(ProviderTCP)
	c1.listeners = []*Listener{CreateListener(Callbacks{})}
	s.push(c1)
	if s.Active() != c1 {
		t.Fatal("push should make c1 active")
	}
	if s.Depth() != 1 {
		t.Fatalf("depth after one push = %d, want 1", s.Depth())
	}
	if s.Status().ActiveProvider != ProviderTCP || s.Status().ActiveQueueLength != 1 {
		t.Errorf("status not synced after push: %+v", s.Status())
	}

	c2 := newContext(ProviderTimer)
	s.push(c2)
	if s.Active() != c2 || s.Depth() != 2 {
		t.Fatal("push should nest onto the stack")
	}

	s.pop()
	if s.Active() != c1 || s.Depth() != 1 {
		t.Fatal("pop should restore c1")
	}

	s.pop()
	if s.Active() != global || s.Depth() != 0 {
		t.Fatal("popping the last suspended context should restore the original global")
	}
}

func TestContextStackPopOnEmptyResetsToFreshGlobal(t *testing.T) {
	s := newContextStack()
	original := s.Active()
	s.pop()
	if s.Active() == original {
		t.Error("popping an empty stack should discard the old Global Context, not reuse it")
	}
	if s.Active().Provider() != ProviderNone {
		t.Error("reset active should still be a Global Context")
	}
}

func TestContextStackAllContextsOrder(t *testing.T) {
	s := newContextStack()
	c1 := newContext(ProviderTCP)
	c2 := newContext(ProviderTimer)
	s.push(c1)
	s.push(c2)

	all := s.allContexts()
	if len(all) != 3 {
		t.Fatalf("allContexts length = %d, want 3", len(all))
	}
	if all[0] != c2 || all[1] != c1 {
		t.Error("allContexts should list active first, then suspended innermost-first")
	}
}
