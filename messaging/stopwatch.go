package messaging

import (
	"sync"
	"time"
)

// Stopwatch measures elapsed time from construction until the first Stop
// call. It is single-use: once stopped it cannot be restarted, and it assumes
// one consumer instance per process. Stop itself is safe to call more than
// once; only the first call wins.
type Stopwatch struct {
	start   time.Time
	once    sync.Once
	elapsed time.Duration
}

// NewStopwatch creates a stopwatch running from now
func NewStopwatch() *Stopwatch {
	return &Stopwatch{start: time.Now()}
}

// Stop freezes the stopwatch. The boolean reports whether this call was the
// one that stopped it.
func (s *Stopwatch) Stop() (time.Duration, bool) {
	stopped := false
	s.once.Do(func() {
		s.elapsed = time.Since(s.start)
		stopped = true
	})
	return s.elapsed, stopped
}
