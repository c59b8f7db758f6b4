package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			calls:    5,
			wantPass: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("192.0.2.1:5000") {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	// Exhaust the first client's bucket.
	rl.Allow("192.0.2.1:5000")
	if rl.Allow("192.0.2.1:5000") {
		t.Error("first client should be exhausted")
	}

	if !rl.Allow("192.0.2.2:5000") {
		t.Error("second client should have its own bucket")
	}
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	rl := New(10, 1)
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := rl.Wait(ctx, "192.0.2.1:5000"); err != nil {
		t.Errorf("first Wait() failed: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("first Wait() should be immediate")
	}

	// Second call should wait ~100ms at 10 rps.
	start = time.Now()
	if err := rl.Wait(ctx, "192.0.2.1:5000"); err != nil {
		t.Errorf("second Wait() failed: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 80*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("second Wait() took %v, want ~100ms", elapsed)
	}
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	rl.Allow("192.0.2.1:5000")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "192.0.2.1:5000"); err == nil {
		t.Error("Wait() should fail when context canceled")
	}
}

func TestKeyedRateLimiter_EvictsIdleKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	rl.Allow("192.0.2.1:5000")

	// Backdate the entry past the idle window and run one sweep.
	rl.mu.Lock()
	rl.entries["192.0.2.1:5000"].lastSeen = time.Now().Add(-idleAfter - time.Minute)
	rl.mu.Unlock()

	rl.sweep(time.Now())

	rl.mu.Lock()
	remaining := len(rl.entries)
	rl.mu.Unlock()

	if remaining != 0 {
		t.Errorf("idle key should be evicted, %d entries remain", remaining)
	}
}
