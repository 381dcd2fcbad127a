package mixer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) handle(s Snapshot) error {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

func TestBroadcastCoalescesWithinWindow(t *testing.T) {
	mock := clock.NewMock()
	e := newTestEngine(t, mock)

	rec := &recorder{}
	if _, err := e.Subscribe(rec.handle); err != nil {
		t.Fatal(err)
	}

	if err := e.SetVolume("A", 0.3); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVolume("A", 0.4); err != nil {
		t.Fatal(err)
	}

	got := rec.all()
	if len(got) != 2 {
		t.Fatalf("expected initial snapshot plus one broadcast, got %d", len(got))
	}
	if s := e.Stats(); s.Broadcasts != 1 || s.Coalesced != 1 {
		t.Fatalf("stats = %+v, want 1 broadcast and 1 coalesced", s)
	}

	mock.Add(DefaultBroadcastInterval)
	e.requestBroadcast()

	got = rec.all()
	if len(got) != 3 {
		t.Fatalf("expected a broadcast after the window, got %d snapshots", len(got))
	}
	last := got[len(got)-1]
	if v := last.Mixes["A"].Volume; v != 0.4 {
		t.Fatalf("latest broadcast volume = %v, want 0.4", v)
	}
	if last.Seq <= got[1].Seq {
		t.Fatalf("sequence did not advance: %d then %d", got[1].Seq, last.Seq)
	}
}

func TestBroadcastDropsFailingSubscriber(t *testing.T) {
	mock := clock.NewMock()
	e := newTestEngine(t, mock)

	good := &recorder{}
	if _, err := e.Subscribe(good.handle); err != nil {
		t.Fatal(err)
	}
	calls := 0
	if _, err := e.Subscribe(func(Snapshot) error {
		calls++
		if calls > 1 {
			return errors.New("socket closed")
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if n := e.Stats().Subscribers; n != 2 {
		t.Fatalf("expected 2 subscribers, got %d", n)
	}

	if err := e.SetMixMute("A", true); err != nil {
		t.Fatal(err)
	}
	if n := e.Stats().Subscribers; n != 1 {
		t.Fatalf("failing subscriber should be dropped, have %d", n)
	}

	mock.Add(time.Second)
	if err := e.SetMixMute("A", false); err != nil {
		t.Fatal(err)
	}
	if n := len(good.all()); n != 3 {
		t.Fatalf("healthy subscriber got %d snapshots, want 3", n)
	}
	if calls != 2 {
		t.Fatalf("dropped subscriber called %d times, want 2", calls)
	}
}

func TestSubscriberPanicDoesNotReachCaller(t *testing.T) {
	e := newTestEngine(t, nil)
	first := true
	if _, err := e.Subscribe(func(Snapshot) error {
		if first {
			first = false
			return nil
		}
		panic("boom")
	}); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVolume("A", 0.1); err != nil {
		t.Fatalf("operation should succeed despite subscriber panic: %v", err)
	}
	if n := e.Stats().Subscribers; n != 0 {
		t.Fatalf("panicking subscriber should be dropped, have %d", n)
	}
}

func TestCloseDropsSubscribers(t *testing.T) {
	e := newTestEngine(t, nil)
	rec := &recorder{}
	if _, err := e.Subscribe(rec.handle); err != nil {
		t.Fatal(err)
	}
	e.Close()
	e.Close()

	if n := e.Stats().Subscribers; n != 0 {
		t.Fatalf("expected no subscribers after Close, got %d", n)
	}
	if err := e.SetVolume("A", 0.2); err != nil {
		t.Fatalf("engine should stay usable after Close: %v", err)
	}
	if n := len(rec.all()); n != 1 {
		t.Fatalf("closed subscriber received %d snapshots, want 1", n)
	}
}
