package auth

import (
	"testing"
	"time"
)

func TestAttemptTrackerLockout(t *testing.T) {
	tr := NewAttemptTracker(3, 15*time.Minute)

	for i := 0; i < 2; i++ {
		if locked := tr.RecordFailure("10.0.0.1", "alice"); locked {
			t.Fatalf("locked after %d failures, threshold is 3", i+1)
		}
	}

	if locked := tr.RecordFailure("10.0.0.1", "alice"); !locked {
		t.Fatal("third failure did not trigger lockout")
	}

	locked, retryAfter := tr.IsLocked("10.0.0.1", "alice")
	if !locked {
		t.Fatal("pair not reported as locked")
	}
	if retryAfter <= 0 || retryAfter > 15*time.Minute {
		t.Errorf("retryAfter = %v, want (0, 15m]", retryAfter)
	}
}

func TestAttemptTrackerScopedToPair(t *testing.T) {
	tr := NewAttemptTracker(2, time.Minute)

	tr.RecordFailure("10.0.0.1", "alice")
	tr.RecordFailure("10.0.0.1", "alice")

	if locked, _ := tr.IsLocked("10.0.0.1", "alice"); !locked {
		t.Error("expected 10.0.0.1/alice locked")
	}
	if locked, _ := tr.IsLocked("10.0.0.2", "alice"); locked {
		t.Error("different client address should not be locked")
	}
	if locked, _ := tr.IsLocked("10.0.0.1", "bob"); locked {
		t.Error("different username should not be locked")
	}
}

func TestAttemptTrackerLockoutExpires(t *testing.T) {
	tr := NewAttemptTracker(1, time.Minute)

	current := time.Now()
	tr.now = func() time.Time { return current }

	tr.RecordFailure("10.0.0.1", "alice")
	if locked, _ := tr.IsLocked("10.0.0.1", "alice"); !locked {
		t.Fatal("expected lockout")
	}

	current = current.Add(61 * time.Second)

	if locked, _ := tr.IsLocked("10.0.0.1", "alice"); locked {
		t.Error("lockout did not expire")
	}

	// Expiry also resets the counter: one more failure re-locks only
	// because the threshold here is 1.
	if remaining := tr.Remaining("10.0.0.1", "alice"); remaining != 1 {
		t.Errorf("Remaining = %d after expiry, want 1", remaining)
	}
}

func TestAttemptTrackerClear(t *testing.T) {
	tr := NewAttemptTracker(3, time.Minute)

	tr.RecordFailure("10.0.0.1", "alice")
	tr.RecordFailure("10.0.0.1", "alice")
	tr.Clear("10.0.0.1", "alice")

	if remaining := tr.Remaining("10.0.0.1", "alice"); remaining != 3 {
		t.Errorf("Remaining = %d after Clear, want 3", remaining)
	}
}
