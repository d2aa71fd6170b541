package dispatch

import (
	"net/http"
	"sync"
)

// latchWriter serializes access to the underlying ResponseWriter so the
// timeout timer and a handler finishing at the same moment can never both
// write: whoever touches the response first wins, and everything from the
// loser is silently dropped.
type latchWriter struct {
	mu          sync.Mutex
	w           http.ResponseWriter
	state       latchState
	wroteHeader bool
}

type latchState int

const (
	latchOpen      latchState = iota // nothing written yet
	latchStreaming                   // a handler owns the response
	latchClosed                      // the dispatcher wrote a final response
)

func newLatchWriter(w http.ResponseWriter) *latchWriter {
	return &latchWriter{w: w}
}

// tryLatch claims the response for a dispatcher-written final answer
// (timeout, 404, 500). It fails if a handler has already started writing.
func (l *latchWriter) tryLatch() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != latchOpen {
		return false
	}
	l.state = latchClosed
	return true
}

// writeLatched emits a plain-text response. Only valid after winning
// tryLatch.
func (l *latchWriter) writeLatched(status int, body string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	l.w.WriteHeader(status)
	_, _ = l.w.Write([]byte(body))
}

func (l *latchWriter) Header() http.Header {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == latchClosed {
		// Header mutations from the loser of the write race go nowhere.
		return http.Header{}
	}
	return l.w.Header()
}

func (l *latchWriter) WriteHeader(status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == latchClosed || l.wroteHeader {
		return
	}
	l.state = latchStreaming
	l.wroteHeader = true
	l.w.WriteHeader(status)
}

func (l *latchWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == latchClosed {
		// Pretend the write succeeded so late handlers unwind cleanly.
		return len(b), nil
	}
	if !l.wroteHeader {
		l.wroteHeader = true
		l.w.WriteHeader(http.StatusOK)
	}
	l.state = latchStreaming
	return l.w.Write(b)
}
