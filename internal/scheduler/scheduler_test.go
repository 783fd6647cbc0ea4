package scheduler

import (
	"strings"
	"testing"
	"time"
)

func TestNextBoundaryAlignsToInterval(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 37, 12, 0, time.UTC)
	got := nextBoundary(now, time.Hour)
	want := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextBoundary = %v, want %v", got, want)
	}
}

func TestNextBoundaryNeverReturnsThePast(t *testing.T) {
	// Exactly on a boundary the next fire is one full interval away,
	// otherwise back-to-back ticks would double fire.
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	got := nextBoundary(now, time.Hour)
	want := time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextBoundary on boundary = %v, want %v", got, want)
	}
}

func TestNextBoundaryConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2025, 3, 10, 19, 20, 0, 0, loc) // 14:20 UTC
	got := nextBoundary(local, time.Hour)
	want := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("nextBoundary = %v, want %v", got, want)
	}
}

func TestCurrentBoundaryTruncatesToInterval(t *testing.T) {
	// A mid-interval instant must map to the boundary already passed;
	// feeding the raw instant into epoch numbering would drift the epoch
	// off the grid the loop uses.
	now := time.Date(2025, 3, 10, 14, 37, 12, 0, time.UTC)
	got := currentBoundary(now, time.Hour)
	want := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("currentBoundary = %v, want %v", got, want)
	}
	if epochOf(got, time.Hour) != epochOf(want, time.Hour) {
		t.Fatal("epoch must match the containing interval")
	}
	if got2 := currentBoundary(want, time.Hour); !got2.Equal(want) {
		t.Fatalf("currentBoundary on boundary = %v, want %v", got2, want)
	}
}

func TestEpochNumbersConsecutiveIntervals(t *testing.T) {
	b1 := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	b2 := b1.Add(time.Hour)
	e1 := epochOf(b1, time.Hour)
	e2 := epochOf(b2, time.Hour)
	if e2 != e1+1 {
		t.Fatalf("epochs not consecutive: %d then %d", e1, e2)
	}
}

func TestEpochStableWithinInterval(t *testing.T) {
	b := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	if epochOf(b, time.Hour) != epochOf(b.Add(30*time.Minute).Truncate(time.Hour), time.Hour) {
		t.Fatal("truncated instants within one interval must share an epoch")
	}
}

func TestHolderSignatureIdentifiesProcess(t *testing.T) {
	sig := holderSignature()
	if sig == "" {
		t.Fatal("empty holder signature")
	}
	if !strings.Contains(sig, ":") {
		t.Fatalf("holder signature %q missing host:pid separator", sig)
	}
}

func TestAcquireResultString(t *testing.T) {
	if Acquired.String() != "acquired" || Locked.String() != "locked" {
		t.Fatalf("unexpected strings: %q %q", Acquired, Locked)
	}
}
