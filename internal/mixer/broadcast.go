package mixer

// requestBroadcast publishes a snapshot unless one went out less than
// minInterval ago. A broadcast already in flight absorbs the request as well;
// the next eligible broadcast (at the latest the next meter tick) carries
// the newer state.
func (e *Engine) requestBroadcast() {
	if !e.pubMu.TryLock() {
		e.coalesced.Add(1)
		return
	}
	defer e.pubMu.Unlock()

	now := e.clk.Now()
	if !e.lastBroadcast.IsZero() && now.Sub(e.lastBroadcast) < e.minInterval {
		e.coalesced.Add(1)
		return
	}
	e.lastBroadcast = now

	seq := e.seq.Add(1)
	e.mu.RLock()
	snap := e.snapshotLocked(seq)
	e.mu.RUnlock()

	e.broadcasts.Add(1)
	if err := e.bus.Publish(snap); err != nil {
		log.Warnw("snapshot delivery failed", "seq", seq, "err", err)
	}
}
