package mixer

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func subscribeChan(t *testing.T, e *Engine) <-chan Snapshot {
	t.Helper()
	ch := make(chan Snapshot, 64)
	if _, err := e.Subscribe(func(s Snapshot) error {
		select {
		case ch <- s:
		default:
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	<-ch // initial snapshot
	return ch
}

func nextSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a meter broadcast")
		return Snapshot{}
	}
}

func TestMeterTickBroadcastsLevels(t *testing.T) {
	mock := clock.NewMock()
	e := newTestEngine(t, mock)

	if err := e.SetMixMute("A", true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetChannelSolo("B", 2, true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetChannelMute("C", 5, true); err != nil {
		t.Fatal(err)
	}

	ch := subscribeChan(t, e)
	e.Start(context.Background())

	mock.Add(DefaultMeterInterval)
	s := nextSnapshot(t, ch)

	if a := s.Mixes["A"]; a.LevelL != 0 || a.LevelR != 0 {
		t.Fatalf("muted mix metered (%v, %v)", a.LevelL, a.LevelR)
	}

	b := s.Mixes["B"]
	for _, c := range b.Channels {
		if c.Index == 2 {
			if c.Level <= 0 {
				t.Fatal("soloed channel should meter")
			}
			continue
		}
		if c.Level != 0 {
			t.Fatalf("channel %d should be gated by solo, level %v", c.Index, c.Level)
		}
	}

	c := s.Mixes["C"]
	if c.LevelL <= 0 || c.LevelR <= 0 {
		t.Fatalf("active mix should meter, got (%v, %v)", c.LevelL, c.LevelR)
	}
	if c.Channels[5].Level != 0 || c.Channels[4].Level <= 0 {
		t.Fatalf("channel levels wrong: muted=%v open=%v", c.Channels[5].Level, c.Channels[4].Level)
	}
	if err := checkInvariants(s); err != nil {
		t.Fatal(err)
	}
}

func TestMeterLevelsFollowGains(t *testing.T) {
	mock := clock.NewMock()
	e := newTestEngine(t, mock)

	if err := e.SetStereoPair("D", "E"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetPan("D", -1); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVolume("F", 0); err != nil {
		t.Fatal(err)
	}

	ch := subscribeChan(t, e)
	e.Start(context.Background())
	mock.Add(DefaultMeterInterval)
	s := nextSnapshot(t, ch)

	if d := s.Mixes["D"]; d.LevelL <= 0 || d.LevelR != 0 {
		t.Fatalf("hard-left mix should only meter left, got (%v, %v)", d.LevelL, d.LevelR)
	}
	if f := s.Mixes["F"]; f.LevelL != 0 || f.LevelR != 0 {
		t.Fatalf("silent mix metered (%v, %v)", f.LevelL, f.LevelR)
	}
}

func TestMetersStopOnClose(t *testing.T) {
	mock := clock.NewMock()
	e, err := New(Options{Clock: mock})
	if err != nil {
		t.Fatal(err)
	}

	ch := subscribeChan(t, e)
	e.Start(context.Background())
	e.Start(context.Background())

	mock.Add(DefaultMeterInterval)
	nextSnapshot(t, ch)

	e.Close()
	before := e.Stats().Broadcasts
	mock.Add(10 * DefaultMeterInterval)
	if after := e.Stats().Broadcasts; after != before {
		t.Fatalf("meters kept broadcasting after Close: %d -> %d", before, after)
	}
}

func TestMetersStopOnContextCancel(t *testing.T) {
	mock := clock.NewMock()
	e := newTestEngine(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	cancel()

	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		t.Fatal("meter process did not exit on cancel")
	}
}

func TestNoMeterTickAfterCancel(t *testing.T) {
	// a tick that is ready together with the cancellation must not be metered
	for i := 0; i < 20; i++ {
		mock := clock.NewMock()
		e := newTestEngine(t, mock)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e.Start(ctx)
		mock.Add(DefaultMeterInterval)

		select {
		case <-e.done:
		case <-time.After(2 * time.Second):
			t.Fatal("meter process did not exit on cancel")
		}
		if n := e.Stats().Broadcasts; n != 0 {
			t.Fatalf("run %d: %d broadcasts after cancel", i, n)
		}
	}
}

func TestStartAfterCloseIsNoop(t *testing.T) {
	e, err := New(Options{Clock: clock.NewMock()})
	if err != nil {
		t.Fatal(err)
	}
	e.Close()
	e.Start(context.Background())
	if e.started.Load() {
		t.Fatal("Start after Close launched the meter process")
	}
}
