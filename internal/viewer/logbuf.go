// internal/viewer/logbuf.go

package viewer

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/MuellerSeb/scarlett-mixer/internal/util"
	"github.com/MuellerSeb/scarlett-mixer/internal/viewer/routes"
)

type LogEntry = routes.LogEntry

// LogBuffer keeps the most recent log lines and fans new ones out to
// streaming clients. It is fed through Write, one entry per line.
type LogBuffer struct {
	entries *util.Ring[LogEntry]

	mu      sync.Mutex
	subs    map[chan LogEntry]struct{}
	partial bytes.Buffer
}

func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = 500
	}
	return &LogBuffer{
		entries: util.NewRing[LogEntry](max),
		subs:    make(map[chan LogEntry]struct{}),
	}
}

// Write implements io.Writer. Incomplete trailing lines are held until the
// newline arrives.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.Write(p)
	for {
		line, err := b.partial.ReadString('\n')
		if err != nil {
			// no newline yet, put the fragment back
			b.partial.Reset()
			b.partial.WriteString(line)
			break
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		e := LogEntry{TS: time.Now(), Msg: line}
		b.entries.Add(e)
		for ch := range b.subs {
			select {
			case ch <- e:
			default:
				// slow reader, drop
			}
		}
	}
	return len(p), nil
}

// Entries returns the newest n lines, oldest first. n <= 0 returns all.
func (b *LogBuffer) Entries(n int) []LogEntry {
	return b.entries.Tail(n)
}

func (b *LogBuffer) Subscribe() (ch chan LogEntry, cancel func()) {
	ch = make(chan LogEntry, 64)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel = func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
