package asynctrack

import "testing"

func TestCreateListenerDefaults(t *testing.T) {
	l := CreateListener(Callbacks{})
	if l.WatchMask() != WatchAll {
		t.Errorf("default watch mask = %v, want %v", l.WatchMask(), WatchAll)
	}
	if l.InitialData() != nil {
		t.Errorf("default initial data = %v, want nil", l.InitialData())
	}
	if l.CallbackFlags() != 0 {
		t.Errorf("empty Callbacks should derive zero flags, got %v", l.CallbackFlags())
	}
	if l.ID() == 0 {
		t.Error("listener id must be assigned")
	}
}

func TestCreateListenerDerivesFlags(t *testing.T) {
	l := CreateListener(Callbacks{
		Create: func(any, string) any { return nil },
		Error:  func(*Context, any, error) bool { return false },
	})
	if !l.CallbackFlags().Has(CallbackCreate) {
		t.Error("expected CallbackCreate flag")
	}
	if !l.CallbackFlags().Has(CallbackError) {
		t.Error("expected CallbackError flag")
	}
	if l.CallbackFlags().Has(CallbackBefore) || l.CallbackFlags().Has(CallbackAfter) {
		t.Error("unset callbacks must not contribute flags")
	}
}

func TestCreateListenerOptions(t *testing.T) {
	l := CreateListener(Callbacks{}, WithInitialData(42), WithWatchMask(ProviderFS))
	if l.InitialData() != 42 {
		t.Errorf("InitialData() = %v, want 42", l.InitialData())
	}
	if l.WatchMask() != ProviderFS {
		t.Errorf("WatchMask() = %v, want %v", l.WatchMask(), ProviderFS)
	}
}

func TestCallbackFlagHas(t *testing.T) {
	flags := CallbackBefore | CallbackAfter
	if !flags.Has(CallbackBefore) {
		t.Error("Has(Before) should be true")
	}
	if flags.Has(CallbackCreate) {
		t.Error("Has(Create) should be false")
	}
	if !flags.Has(CallbackBefore | CallbackAfter) {
		t.Error("Has should accept a combined mask fully contained in flags")
	}
}
