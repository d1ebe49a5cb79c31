package messaging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// RecordLog emits the three observable demo log lines. The line formats are
// a stable contract:
//
//	Sent     : <8-hex fingerprint> : <identity>
//	Received : <8-hex fingerprint> : <identity>
//	Stopwatch : <elapsed-ms> ms
//
// Producer and consumer write concurrently, so every emit holds the lock for
// the whole line.
type RecordLog struct {
	mu  sync.Mutex
	out io.Writer
}

// NewRecordLog creates a record log writing to out. A nil out defaults to
// standard output.
func NewRecordLog(out io.Writer) *RecordLog {
	if out == nil {
		out = os.Stdout
	}
	return &RecordLog{out: out}
}

// Sent emits one producer send record
func (r *RecordLog) Sent(fingerprint, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "Sent     : %s : %s\n", fingerprint, identity)
}

// Received emits one consumer receive record
func (r *RecordLog) Received(fingerprint, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "Received : %s : %s\n", fingerprint, identity)
}

// Stopwatch emits the elapsed-time record
func (r *RecordLog) Stopwatch(elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "Stopwatch : %d ms\n", elapsed.Milliseconds())
}
