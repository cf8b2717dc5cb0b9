package epoch

import (
	"math/big"
	"testing"

	"lockvault/core/events"
)

func TestTrackerRecordStrictlyGreater(t *testing.T) {
	state := newMockState()
	tracker := NewTracker(state)
	recorder := &events.Recorder{}
	tracker.SetEmitter(recorder)

	alice := testAddr(1)
	bob := testAddr(2)

	if err := tracker.Record(alice, big.NewInt(100)); err != nil {
		t.Fatalf("record alice: %v", err)
	}
	if holder, best := tracker.Holder(); holder != alice || best.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("holder = %x/%s, want alice/100", holder, best)
	}

	// A tie keeps the incumbent.
	if err := tracker.Record(bob, big.NewInt(100)); err != nil {
		t.Fatalf("record tie: %v", err)
	}
	if holder, _ := tracker.Holder(); holder != alice {
		t.Fatal("tie replaced the incumbent")
	}

	if err := tracker.Record(bob, big.NewInt(101)); err != nil {
		t.Fatalf("record bob: %v", err)
	}
	if holder, best := tracker.Holder(); holder != bob || best.Cmp(big.NewInt(101)) != 0 {
		t.Fatalf("holder = %x/%s, want bob/101", holder, best)
	}

	changes := recorder.ByType(events.EventLeaderboardHolderChanged)
	if len(changes) != 2 {
		t.Fatalf("holder change events = %d, want 2", len(changes))
	}
}

func TestTrackerRecordSelfImprovement(t *testing.T) {
	state := newMockState()
	tracker := NewTracker(state)
	recorder := &events.Recorder{}
	tracker.SetEmitter(recorder)

	alice := testAddr(1)
	if err := tracker.Record(alice, big.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Record(alice, big.NewInt(200)); err != nil {
		t.Fatal(err)
	}
	if _, best := tracker.Holder(); best.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("best = %s, want 200", best)
	}
	// Raising one's own record is not a holder change.
	if changes := recorder.ByType(events.EventLeaderboardHolderChanged); len(changes) != 1 {
		t.Fatalf("holder change events = %d, want 1", len(changes))
	}
}

func TestTrackerIgnoresZeroAndNil(t *testing.T) {
	state := newMockState()
	tracker := NewTracker(state)

	if err := tracker.Record(testAddr(1), nil); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Record(testAddr(1), big.NewInt(0)); err != nil {
		t.Fatal(err)
	}
	if holder, best := tracker.Holder(); holder != ([20]byte{}) || best.Sign() != 0 {
		t.Fatalf("holder changed on zero observation: %x/%s", holder, best)
	}
}
