// internal/mixer/pairing.go

package mixer

// SetStereoPair links name with target as a stereo pair, or unlinks name when
// target is empty, equal to name, or not in the roster.
//
// Old links are broken before the new one is made, on both sides: name's
// previous partner and target's previous partner each fall back to unpaired
// defaults. The whole change happens under one lock and is broadcast once,
// so no subscriber sees a half-linked pair or a mix paired with two others.
func (e *Engine) SetStereoPair(name, target string) error {
	return e.update(func() error {
		m, err := e.lookup(name)
		if err != nil {
			return err
		}
		if target == name {
			target = ""
		}

		if m.StereoPair != "" && m.StereoPair != target {
			e.breakPair(m)
		}

		t, ok := e.mixes[target]
		if !ok {
			if target != "" {
				log.Debugw("pair target not in roster, unpairing", "mix", name, "target", target)
			}
			e.breakPair(m)
			return nil
		}

		if t.StereoPair != "" && t.StereoPair != name {
			e.breakPair(t)
		}
		link(m, t)
		log.Debugw("stereo pair linked", "mix", m.Name, "partner", t.Name)
		return nil
	})
}

// breakPair unpairs m and, if the link is mutual, its partner. Caller holds e.mu.
func (e *Engine) breakPair(m *Mix) {
	if !m.paired() {
		return
	}
	if p, ok := e.mixes[m.StereoPair]; ok && p.StereoPair == m.Name {
		p.unpair()
		log.Debugw("stereo pair detached", "mix", p.Name, "was", m.Name)
	}
	m.unpair()
}

func link(a, b *Mix) {
	a.StereoPair = b.Name
	b.StereoPair = a.Name
	for _, m := range []*Mix{a, b} {
		m.Joined = true
		m.Pan = 0
		m.applyPanLaw()
		m.resetChannelPans()
	}
}
