package kernel

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(3)
	base := time.Now()

	for i := 0; i < 3; i++ {
		if !rl.CheckAndRecord(base.Add(time.Duration(i) * time.Second)) {
			t.Fatalf("expected action %d to be admitted", i)
		}
	}

	if rl.CheckAndRecord(base.Add(3 * time.Second)) {
		t.Fatal("expected 4th action within the window to be denied")
	}
}

func TestRateLimiterZeroLimitRejectsAll(t *testing.T) {
	rl := NewRateLimiter(0)
	if rl.CheckAndRecord(time.Now()) {
		t.Fatal("expected max_per_minute=0 to deny every action")
	}
}

func TestRateLimiterSetMaxAppliesImmediately(t *testing.T) {
	rl := NewRateLimiter(1)
	base := time.Now()

	if !rl.CheckAndRecord(base) {
		t.Fatal("expected first action to be admitted")
	}
	if rl.CheckAndRecord(base.Add(time.Second)) {
		t.Fatal("expected second action to be denied under max=1")
	}

	rl.SetMax(2)
	if !rl.CheckAndRecord(base.Add(2 * time.Second)) {
		t.Fatal("expected action to be admitted after raising max to 2")
	}
}

func TestRateLimiterSlidingWindowEvictsOldEntries(t *testing.T) {
	rl := NewRateLimiter(1)
	base := time.Now()

	if !rl.CheckAndRecord(base) {
		t.Fatal("expected first action to be admitted")
	}
	if rl.CheckAndRecord(base.Add(30 * time.Second)) {
		t.Fatal("expected second action inside the window to be denied")
	}
	if !rl.CheckAndRecord(base.Add(61 * time.Second)) {
		t.Fatal("expected action after the window elapsed to be admitted")
	}
}
