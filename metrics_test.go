package asynctrack

import (
	"testing"
	"time"
)

func TestHookMetricsPhaseLatencyRecordsPerProvider(t *testing.T) {
	m := newHookMetrics()

	if _, _, _, _, ok := m.PhaseLatency(ProviderTCP); ok {
		t.Fatal("PhaseLatency should report ok=false before any sample is recorded")
	}

	m.recordPhase(ProviderTCP, 1.5)
	m.recordPhase(ProviderTCP, 2.5)
	m.recordPhase(ProviderTimer, 9.0)

	p50, _, _, count, ok := m.PhaseLatency(ProviderTCP)
	if !ok {
		t.Fatal("PhaseLatency(TCP) should report ok=true after recording samples")
	}
	if count != 2 {
		t.Fatalf("PhaseLatency(TCP) count = %d, want 2", count)
	}
	if p50 <= 0 {
		t.Fatalf("PhaseLatency(TCP) p50 = %v, want > 0", p50)
	}

	if _, _, _, timerCount, ok := m.PhaseLatency(ProviderTimer); !ok || timerCount != 1 {
		t.Fatalf("PhaseLatency(TIMER) count = %d, ok=%v; want 1, true", timerCount, ok)
	}
}

func TestHookMetricsLifecycleCounters(t *testing.T) {
	m := newHookMetrics()

	m.activeContexts.Add(3)
	m.activeContexts.Add(-1)
	if m.ActiveContexts() != 2 {
		t.Fatalf("ActiveContexts() = %d, want 2", m.ActiveContexts())
	}

	m.leakedContexts.Add(1)
	if m.LeakedContexts() != 1 {
		t.Fatalf("LeakedContexts() = %d, want 1", m.LeakedContexts())
	}

	m.attachCount.Add(5)
	m.detachCount.Add(2)
	if m.AttachCount() != 5 || m.DetachCount() != 2 {
		t.Fatalf("AttachCount()/DetachCount() = %d/%d, want 5/2", m.AttachCount(), m.DetachCount())
	}

	m.errorsHandled.Add(1)
	m.errorsUnhandled.Add(4)
	if m.ErrorsHandled() != 1 || m.ErrorsUnhandled() != 4 {
		t.Fatalf("ErrorsHandled()/ErrorsUnhandled() = %d/%d, want 1/4", m.ErrorsHandled(), m.ErrorsUnhandled())
	}
}

func TestLatencyMetricsSampleComputesPercentiles(t *testing.T) {
	var lm LatencyMetrics
	for i := 1; i <= 10; i++ {
		lm.Record(time.Duration(i) * time.Millisecond)
	}
	if n := lm.Sample(); n != 10 {
		t.Fatalf("Sample() returned %d samples, want 10", n)
	}
	if lm.Max < lm.P99 || lm.P99 < lm.P50 {
		t.Fatalf("expected Max >= P99 >= P50, got Max=%v P99=%v P50=%v", lm.Max, lm.P99, lm.P50)
	}
}

func TestTPSCounterIncrementIsPositive(t *testing.T) {
	tc := NewTPSCounter(10*time.Second, 100*time.Millisecond)
	for i := 0; i < 5; i++ {
		tc.Increment()
	}
	if got := tc.TPS(); got <= 0 {
		t.Fatalf("TPS() after 5 increments = %v, want > 0", got)
	}
}
