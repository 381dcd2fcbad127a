package mixer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
)

// checkInvariants verifies pairing symmetry, unpaired defaults and value ranges.
func checkInvariants(s Snapshot) error {
	for _, name := range s.Order {
		m := s.Mixes[name]
		if m.StereoPair == m.Name {
			return fmt.Errorf("mix %s paired with itself", name)
		}
		if m.StereoPair != "" {
			p, ok := s.Mixes[m.StereoPair]
			if !ok {
				return fmt.Errorf("mix %s paired with unknown %s", name, m.StereoPair)
			}
			if p.StereoPair != name {
				return fmt.Errorf("asymmetric pair: %s -> %s but %s -> %q", name, m.StereoPair, p.Name, p.StereoPair)
			}
		} else {
			if m.Joined {
				return fmt.Errorf("unpaired mix %s is joined", name)
			}
			if m.Pan != 0 || m.GainL != m.Volume || m.GainR != m.Volume {
				return fmt.Errorf("unpaired mix %s lost its defaults: %+v", name, m)
			}
		}
		for _, v := range []float64{m.Volume, m.GainL, m.GainR, m.LevelL, m.LevelR} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				return fmt.Errorf("mix %s has value %v outside [0,1]", name, v)
			}
		}
		if m.Pan < -1 || m.Pan > 1 {
			return fmt.Errorf("mix %s pan %v outside [-1,1]", name, m.Pan)
		}
		for _, c := range m.Channels {
			if c.Volume < 0 || c.Volume > 1 || c.Level < 0 || c.Level > 1 || c.Pan < -1 || c.Pan > 1 {
				return fmt.Errorf("mix %s channel %d out of range: %+v", name, c.Index, c)
			}
		}
	}
	return nil
}

func TestPairAndRepair(t *testing.T) {
	e := newTestEngine(t, nil)

	if err := e.SetStereoPair("A", "B"); err != nil {
		t.Fatal(err)
	}
	a, b := mustMix(t, e, "A"), mustMix(t, e, "B")
	if a.StereoPair != "B" || b.StereoPair != "A" || !a.Joined || !b.Joined {
		t.Fatalf("A/B not linked: A=%+v B=%+v", a, b)
	}
	wantL, wantR := ApplyStereoJoin(a.Volume, 0)
	if math.Abs(a.GainL-wantL) > eps || math.Abs(a.GainR-wantR) > eps {
		t.Fatalf("linked gains = (%v, %v), want (%v, %v)", a.GainL, a.GainR, wantL, wantR)
	}

	if err := e.SetStereoPair("A", "C"); err != nil {
		t.Fatal(err)
	}
	a, b, c := mustMix(t, e, "A"), mustMix(t, e, "B"), mustMix(t, e, "C")
	if a.StereoPair != "C" || c.StereoPair != "A" {
		t.Fatalf("A/C not linked: A=%q C=%q", a.StereoPair, c.StereoPair)
	}
	if b.StereoPair != "" || b.Joined || b.GainL != b.Volume || b.GainR != b.Volume {
		t.Fatalf("B should be detached with defaults: %+v", b)
	}
	if err := checkInvariants(e.Snapshot()); err != nil {
		t.Fatal(err)
	}
}

func TestPairStealsTargetFromPartner(t *testing.T) {
	e := newTestEngine(t, nil)

	if err := e.SetStereoPair("A", "B"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetStereoPair("C", "D"); err != nil {
		t.Fatal(err)
	}
	// B leaves A and takes C away from D.
	if err := e.SetStereoPair("B", "C"); err != nil {
		t.Fatal(err)
	}

	s := e.Snapshot()
	if s.Mixes["B"].StereoPair != "C" || s.Mixes["C"].StereoPair != "B" {
		t.Fatalf("B/C not linked")
	}
	for _, name := range []string{"A", "D"} {
		if s.Mixes[name].StereoPair != "" {
			t.Fatalf("%s should be unpaired, has %q", name, s.Mixes[name].StereoPair)
		}
	}
	if err := checkInvariants(s); err != nil {
		t.Fatal(err)
	}
}

func TestPairUnpairCases(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"self", "A"},
		{"empty", ""},
		{"unknown", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, nil)
			if err := e.SetStereoPair("A", "B"); err != nil {
				t.Fatal(err)
			}
			if err := e.SetStereoPair("A", tt.target); err != nil {
				t.Fatalf("SetStereoPair(A, %q): %v", tt.target, err)
			}
			s := e.Snapshot()
			if s.Mixes["A"].StereoPair != "" || s.Mixes["B"].StereoPair != "" {
				t.Fatalf("expected A and B unpaired, got A=%q B=%q",
					s.Mixes["A"].StereoPair, s.Mixes["B"].StereoPair)
			}
			if err := checkInvariants(s); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestPairSamePartnerIsIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.SetStereoPair("A", "B"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetStereoPair("B", "A"); err != nil {
		t.Fatal(err)
	}
	s := e.Snapshot()
	if s.Mixes["A"].StereoPair != "B" || s.Mixes["B"].StereoPair != "A" {
		t.Fatal("re-pairing the same partners should keep the link")
	}
}

func TestDetachResetsChannelPansKeepsVolumeAndMute(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.SetStereoPair("A", "B"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetVolume("B", 0.3); err != nil {
		t.Fatal(err)
	}
	if err := e.SetMixMute("B", true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetPan("B", 0.8); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := e.SetChannelPan("B", i, -0.5); err != nil {
			t.Fatal(err)
		}
	}

	// A moves on, B is detached as a side effect.
	if err := e.SetStereoPair("A", "C"); err != nil {
		t.Fatal(err)
	}
	b := mustMix(t, e, "B")
	if b.Volume != 0.3 || !b.Mute {
		t.Fatalf("detach must keep volume and mute: %+v", b)
	}
	if b.Pan != 0 || b.GainL != 0.3 || b.GainR != 0.3 {
		t.Fatalf("detached mix should be centered at its volume: %+v", b)
	}
	for _, c := range b.Channels {
		if c.Pan != 0 {
			t.Fatalf("channel %d pan = %v after detach", c.Index, c.Pan)
		}
	}
}

func TestLinkResetsChannelPans(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.SetChannelPan("A", 0, 0.9); err != nil {
		t.Fatal(err)
	}
	if err := e.SetStereoPair("A", "B"); err != nil {
		t.Fatal(err)
	}
	if p := mustMix(t, e, "A").Channels[0].Pan; p != 0 {
		t.Fatalf("channel pan after link = %v, want 0", p)
	}
}

func TestRandomPairingSequencesKeepInvariants(t *testing.T) {
	e := newTestEngine(t, nil)
	names := append(e.Snapshot().Order, "", "ghost")
	rng := rand.New(rand.NewPCG(7, 42))

	for i := 0; i < 2000; i++ {
		before := e.Snapshot()
		a := names[rng.IntN(len(names)-2)]
		b := names[rng.IntN(len(names))]

		switch rng.IntN(6) {
		case 0, 1, 2:
			if err := e.SetStereoPair(a, b); err != nil {
				t.Fatalf("step %d SetStereoPair(%q, %q): %v", i, a, b, err)
			}
		case 3:
			_ = e.SetPan(a, rng.Float64()*4-2)
		case 4:
			_ = e.SetJoin(a, rng.IntN(2) == 0)
		case 5:
			_ = e.SetChannelPan(a, rng.IntN(DefaultChannelCount), rng.Float64()*2-1)
		}

		after := e.Snapshot()
		if err := checkInvariants(after); err != nil {
			t.Fatalf("step %d (%s, %s): %v", i, a, b, err)
		}
		for _, name := range after.Order {
			if before.Mixes[name].StereoPair == "" || after.Mixes[name].StereoPair != "" {
				continue
			}
			for _, c := range after.Mixes[name].Channels {
				if c.Pan != 0 {
					t.Fatalf("step %d: %s was detached but channel %d pan = %v", i, name, c.Index, c.Pan)
				}
			}
		}
	}
}
