package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Hour})

	for range 3 {
		if err := b.Allow(); err != nil {
			t.Fatalf("closed breaker rejected call: %v", err)
		}
		b.Failure()
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v after 3 failures, want open", got)
	}
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Hour})

	for range 2 {
		if err := b.Allow(); err != nil {
			t.Fatal(err)
		}
		b.Failure()
	}
	if err := b.Allow(); err != nil {
		t.Fatal(err)
	}
	b.Success()

	// The counter restarted, so two more failures stay under threshold.
	for range 2 {
		if err := b.Allow(); err != nil {
			t.Fatal(err)
		}
		b.Failure()
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}

	if err := b.Allow(); err != nil {
		t.Fatal(err)
	}
	b.Failure()
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v after third consecutive failure, want open", got)
	}
}

func TestBreakerHalfOpenSingleTrial(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Millisecond})

	if err := b.Allow(); err != nil {
		t.Fatal(err)
	}
	b.Failure()
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker admitted a call: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("recovery elapsed but trial rejected: %v", err)
	}
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", got)
	}
	// Callers during the trial are rejected, never a second trial.
	for range 3 {
		if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("concurrent caller admitted during trial: %v", err)
		}
	}

	b.Success()
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %v after trial success, want closed", got)
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("closed breaker rejected call: %v", err)
	}
}

func TestBreakerTrialFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Millisecond})

	if err := b.Allow(); err != nil {
		t.Fatal(err)
	}
	b.Failure()
	time.Sleep(50 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatal(err)
	}
	b.Failure()

	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %v after failed trial, want open", got)
	}
	// openedAt was reset, so the recovery window starts over.
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := b.Allow(); err != nil {
		t.Fatalf("second recovery window should admit a trial: %v", err)
	}
}

func TestBreakerConcurrentTrialAdmitsOne(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 20 * time.Millisecond})

	if err := b.Allow(); err != nil {
		t.Fatal(err)
	}
	b.Failure()
	time.Sleep(40 * time.Millisecond)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 1 {
		t.Fatalf("admitted = %d, want exactly 1 trial", got)
	}
}

func TestBreakerSetKeysIndependently(t *testing.T) {
	set := NewBreakerSet(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour}, nil)

	a := set.Get("anidb:search_anime")
	if err := a.Allow(); err != nil {
		t.Fatal(err)
	}
	a.Failure()

	if err := set.Get("anidb:search_anime").Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if err := set.Get("anilist:search_anime").Allow(); err != nil {
		t.Fatalf("unrelated operation rejected: %v", err)
	}

	states := set.States()
	if states["anidb:search_anime"] != StateOpen {
		t.Fatalf("anidb state = %v, want open", states["anidb:search_anime"])
	}
	if states["anilist:search_anime"] != StateClosed {
		t.Fatalf("anilist state = %v, want closed", states["anilist:search_anime"])
	}
}
