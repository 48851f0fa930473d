package asynctrack

import "testing"

func TestResolveLoopOptionsDefaults(t *testing.T) {
	cfg, err := resolveLoopOptions(nil)
	if err != nil {
		t.Fatalf("resolveLoopOptions(nil) returned error: %v", err)
	}
	if cfg.fastPathMode != FastPathAuto {
		t.Fatalf("default fastPathMode = %v, want FastPathAuto", cfg.fastPathMode)
	}
	if cfg.strictMicrotaskOrdering || cfg.metricsEnabled || cfg.debugMode {
		t.Fatal("all boolean options should default to false")
	}
}

func TestResolveLoopOptionsSkipsNil(t *testing.T) {
	cfg, err := resolveLoopOptions([]LoopOption{nil, WithMetrics(true), nil})
	if err != nil {
		t.Fatalf("resolveLoopOptions returned error: %v", err)
	}
	if !cfg.metricsEnabled {
		t.Fatal("WithMetrics(true) should be applied even alongside nil options")
	}
}

func TestResolveLoopOptionsAppliesAll(t *testing.T) {
	cfg, err := resolveLoopOptions([]LoopOption{
		WithStrictMicrotaskOrdering(true),
		WithFastPathMode(FastPathDisabled),
		WithMetrics(true),
		WithDebugMode(true),
	})
	if err != nil {
		t.Fatalf("resolveLoopOptions returned error: %v", err)
	}
	if !cfg.strictMicrotaskOrdering {
		t.Error("strictMicrotaskOrdering not applied")
	}
	if cfg.fastPathMode != FastPathDisabled {
		t.Error("fastPathMode not applied")
	}
	if !cfg.metricsEnabled {
		t.Error("metricsEnabled not applied")
	}
	if !cfg.debugMode {
		t.Error("debugMode not applied")
	}
}

func TestListenerOptionsWithInitialDataAndWatchMask(t *testing.T) {
	l := CreateListener(Callbacks{}, WithInitialData("seed"), WithWatchMask(ProviderTCP|ProviderTimer))
	if l.initialData != "seed" {
		t.Fatalf("initialData = %v, want %q", l.initialData, "seed")
	}
	if l.watchMask != ProviderTCP|ProviderTimer {
		t.Fatalf("watchMask = %v, want ProviderTCP|ProviderTimer", l.watchMask)
	}
}
