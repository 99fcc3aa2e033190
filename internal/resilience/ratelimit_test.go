package resilience

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestPacerSpacesConcurrentAcquires(t *testing.T) {
	const minDelay = 200 * time.Millisecond
	p := NewPacer(minDelay)
	ctx := context.Background()

	start := time.Now()
	grants := make([]time.Time, 5)
	var wg sync.WaitGroup
	for i := range grants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Wait(ctx, "anidb"); err != nil {
				t.Error(err)
				return
			}
			grants[i] = time.Now()
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 4*minDelay {
		t.Fatalf("5 grants completed in %v, want at least %v", elapsed, 4*minDelay)
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })
	for i := 1; i < len(grants); i++ {
		if gap := grants[i].Sub(grants[i-1]); gap < minDelay-20*time.Millisecond {
			t.Fatalf("grants %d and %d only %v apart, want about %v", i-1, i, gap, minDelay)
		}
	}
}

func TestPacerFirstGrantImmediate(t *testing.T) {
	p := NewPacer(time.Second)

	start := time.Now()
	if err := p.Wait(context.Background(), "anidb"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("first grant took %v, want immediate", elapsed)
	}
}

func TestPacerTargetsIndependent(t *testing.T) {
	p := NewPacer(time.Second)
	ctx := context.Background()

	if err := p.Wait(ctx, "anidb"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := p.Wait(ctx, "anilist"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("other target waited %v, want immediate", elapsed)
	}
}

func TestPacerCancelledWait(t *testing.T) {
	p := NewPacer(500 * time.Millisecond)

	if err := p.Wait(context.Background(), "anidb"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := p.Wait(ctx, "anidb")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("cancelled wait returned after %v, want prompt return", elapsed)
	}
}

func TestPacerZeroDelayPassesThrough(t *testing.T) {
	p := NewPacer(0)
	for range 10 {
		if err := p.Wait(context.Background(), "anidb"); err != nil {
			t.Fatal(err)
		}
	}
}
