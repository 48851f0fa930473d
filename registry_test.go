package asynctrack

import (
	"runtime"
	"sync"
	"testing"
)

func TestRegistryNewPromiseAssignsIncreasingIDs(t *testing.T) {
	r := newRegistry()
	id1, p1 := r.NewPromise()
	id2, p2 := r.NewPromise()
	if id2 <= id1 {
		t.Fatalf("ids not increasing: %d then %d", id1, id2)
	}
	if p1.State() != Pending || p2.State() != Pending {
		t.Fatal("new promises should start Pending")
	}
}

func TestRegistryScavengeRemovesSettled(t *testing.T) {
	r := newRegistry()
	_, p := r.NewPromise()
	p.Resolve("done")

	r.Scavenge(1024)

	r.mu.RLock()
	_, stillTracked := r.data[1]
	r.mu.RUnlock()
	if stillTracked {
		t.Fatal("Scavenge should remove a settled promise from tracking")
	}
}

func TestRegistryThreadSafetyConcurrentProduceAndScavenge(t *testing.T) {
	r := newRegistry()

	const numProducers = 20
	const numPromises = 50

	start := make(chan struct{})
	var producersWG sync.WaitGroup
	producersWG.Add(numProducers)
	for i := 0; i < numProducers; i++ {
		go func() {
			defer producersWG.Done()
			<-start
			for j := 0; j < numPromises; j++ {
				_, p := r.NewPromise()
				if p == nil {
					panic("NewPromise returned nil")
				}
			}
		}()
	}

	stop := make(chan struct{})
	var scavengeWG sync.WaitGroup
	scavengeWG.Add(1)
	go func() {
		defer scavengeWG.Done()
		<-start
		for {
			select {
			case <-stop:
				return
			default:
				r.Scavenge(10)
				runtime.Gosched()
			}
		}
	}()

	close(start)
	producersWG.Wait()
	close(stop)
	scavengeWG.Wait()
}

func TestContextRegistryTrackAssignsRegistryID(t *testing.T) {
	r := newContextRegistry()
	ctx := newContext(ProviderTCP)

	id := r.Track(ctx)
	if id == 0 {
		t.Fatal("Track should assign a nonzero registryID")
	}
	if ctx.registryID != id {
		t.Fatalf("ctx.registryID = %d, want %d", ctx.registryID, id)
	}
}

func TestContextRegistryForgetRemovesEntry(t *testing.T) {
	r := newContextRegistry()
	ctx := newContext(ProviderTCP)
	id := r.Track(ctx)

	r.Forget(id)

	r.mu.RLock()
	_, ok := r.data[id]
	r.mu.RUnlock()
	if ok {
		t.Fatal("Forget should remove the tracked entry immediately")
	}
}

func TestContextRegistryForgetZeroIsNoop(t *testing.T) {
	r := newContextRegistry()
	r.Forget(0) // must not panic
}

func TestContextRegistryScavengeDetectsLeak(t *testing.T) {
	r := newContextRegistry()

	func() {
		ctx := newContext(ProviderTimer)
		r.Track(ctx)
		// ctx falls out of scope here without ever being Unloaded: a leak.
	}()

	runtime.GC()
	r.Scavenge(1024)

	if r.LeakCount() == 0 {
		// The weak pointer may not have been collected in time on a single
		// pass; a second attempt after another GC makes this deterministic
		// enough for CI without flaking on timing.
		runtime.GC()
		r.Scavenge(1024)
	}
	if r.LeakCount() == 0 {
		t.Fatal("an orphaned, never-unloaded context should be counted as a leak")
	}
}

func TestContextRegistryScavengeSkipsUnloaded(t *testing.T) {
	r := newContextRegistry()
	ctx := newContext(ProviderTCP)
	r.Track(ctx)
	ctx.markUnloaded()

	r.Scavenge(1024)

	if r.LeakCount() != 0 {
		t.Fatalf("LeakCount() = %d, want 0: a properly unloaded context is not a leak", r.LeakCount())
	}
}
