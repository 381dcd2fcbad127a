package mixer

import (
	"context"
	"math"

	"github.com/benbjohnson/clock"
)

// runMeters is the simulated metering loop. The stop signal is only looked
// at between ticks, never in the middle of a meter update.
func (e *Engine) runMeters(ctx context.Context, ticker *clock.Ticker) {
	defer close(e.done)
	defer ticker.Stop()

	step := e.meterInterval.Seconds()
	var t float64
	for {
		select {
		case <-ctx.Done():
			log.Debug("meter process: context done")
			return
		case <-e.stop:
			log.Debug("meter process: stopped")
			return
		case <-ticker.C:
		}

		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		default:
		}

		t += step
		e.mu.Lock()
		e.updateMetersLocked(t)
		e.mu.Unlock()
		e.requestBroadcast()
	}
}

// updateMetersLocked derives fake levels from virtual time t and the current
// gains. Muted strips read 0; when a mix has any soloed channel the others
// read 0.
func (e *Engine) updateMetersLocked(t float64) {
	for i, name := range e.order {
		m := e.mixes[name]
		phase := float64(i) * 0.61

		solo := false
		for _, c := range m.Channels {
			if c.Solo {
				solo = true
				break
			}
		}
		for j := range m.Channels {
			c := &m.Channels[j]
			if c.Mute || (solo && !c.Solo) {
				c.Level = 0
				continue
			}
			base, wiggle := meterWave(t, 1.1+0.05*float64(j), 6.3+0.2*float64(j), phase+float64(j)*0.37)
			c.Level = clampUnit(c.Volume * (base + wiggle))
		}

		if m.Mute {
			m.LevelL, m.LevelR = 0, 0
			continue
		}
		base, wiggle := meterWave(t, 1.3, 7.1, phase)
		m.LevelL = clampUnit(m.GainL * (base + wiggle))
		m.LevelR = clampUnit(m.GainR * (base + wiggle*0.8))
	}
}

// meterWave returns a slow swell in [0.2, 0.4] and a fast flicker in [0, 0.1].
func meterWave(t, slow, fast, phase float64) (base, wiggle float64) {
	base = 0.2 + 0.2*(math.Sin(t*slow+phase)+1)/2
	wiggle = 0.1 * (math.Sin(t*fast+phase*1.7) + 1) / 2
	return base, wiggle
}
