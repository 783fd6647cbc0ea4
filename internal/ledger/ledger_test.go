package ledger

import (
	"fmt"
	"testing"
)

func buildChain(n int) []Entry {
	prev := Genesis
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		e := Entry{
			Position:     int64(i + 1),
			TxID:         fmt.Sprintf("tx-%03d", i),
			SenderID:     "alice",
			SenderName:   "Alice",
			ReceiverID:   "bob",
			ReceiverName: "Bob",
			Currency:     "COIN",
			Gross:        "40.0000",
			Tax:          "2.0000",
			Net:          "38.0000",
			TxType:       "TRANSFER",
			Description:  "test",
			PreviousHash: prev,
		}
		e.CurrentHash = HashOf(e)
		prev = e.CurrentHash
		entries = append(entries, e)
	}
	return entries
}

func TestVerifyIntactChain(t *testing.T) {
	for _, n := range []int{0, 1, 2, 25} {
		ok, broken := Verify(buildChain(n))
		if !ok {
			t.Fatalf("chain of %d entries reported broken at %d", n, broken)
		}
	}
}

func TestVerifyDetectsCorruptedHash(t *testing.T) {
	entries := buildChain(10)
	entries[4].CurrentHash = "deadbeef" + entries[4].CurrentHash[8:]
	ok, broken := Verify(entries)
	if ok {
		t.Fatalf("expected corrupted chain to fail")
	}
	if broken != 4 {
		t.Fatalf("broken at %d, want 4", broken)
	}
}

func TestVerifyDetectsTamperedAmount(t *testing.T) {
	entries := buildChain(10)
	// Rewriting an amount without recomputing the hash must be visible.
	entries[2].Gross = "400.0000"
	entries[2].Net = "398.0000"
	ok, broken := Verify(entries)
	if ok {
		t.Fatalf("expected tampered chain to fail")
	}
	if broken != 2 {
		t.Fatalf("broken at %d, want 2", broken)
	}
}

func TestVerifyDetectsBrokenLink(t *testing.T) {
	entries := buildChain(6)
	entries[3].PreviousHash = Genesis
	ok, broken := Verify(entries)
	if ok {
		t.Fatalf("expected relinked chain to fail")
	}
	if broken != 3 {
		t.Fatalf("broken at %d, want 3", broken)
	}
}

func TestVerifyDetectsBadReconciliation(t *testing.T) {
	entries := buildChain(3)
	// Recompute hashes so only the gross/tax/net identity is wrong.
	entries[1].Net = "37.0000"
	prev := entries[0].CurrentHash
	for i := 1; i < len(entries); i++ {
		entries[i].PreviousHash = prev
		entries[i].CurrentHash = HashOf(entries[i])
		prev = entries[i].CurrentHash
	}
	ok, broken := Verify(entries)
	if ok {
		t.Fatalf("expected unreconciled entry to fail")
	}
	if broken != 1 {
		t.Fatalf("broken at %d, want 1", broken)
	}
}

func TestHashCommitsToPredecessor(t *testing.T) {
	e := buildChain(1)[0]
	h1 := HashOf(e)
	e.PreviousHash = "1111111111111111111111111111111111111111111111111111111111111111"
	if HashOf(e) == h1 {
		t.Fatalf("hash must change when previous_hash changes")
	}
}
