package mixer

// SnapshotType is the message type carried by every broadcast.
const SnapshotType = "snapshot"

// Snapshot is a deep copy of the whole mixer state. It shares no memory with
// the engine, so subscribers may keep or forward it freely.
type Snapshot struct {
	Type  string         `json:"type"`
	Seq   uint64         `json:"seq"`
	Order []string       `json:"order"`
	Mixes map[string]Mix `json:"mixes"`
}

// Mix returns the named mix from the snapshot.
func (s Snapshot) Mix(name string) (Mix, bool) {
	m, ok := s.Mixes[name]
	return m, ok
}

// snapshotLocked copies the state; caller holds e.mu (read or write).
func (e *Engine) snapshotLocked(seq uint64) Snapshot {
	snap := Snapshot{
		Type:  SnapshotType,
		Seq:   seq,
		Order: append([]string(nil), e.order...),
		Mixes: make(map[string]Mix, len(e.mixes)),
	}
	for name, m := range e.mixes {
		snap.Mixes[name] = m.clone()
	}
	return snap
}
