package poller

import (
	"sync"
	"time"

	"github.com/speedwagon-io/weatherdash/internal/model"
)

// Store holds the latest published frame and refresh status for the HTTP
// layer. The poller goroutine is the only writer in production; the setters
// are exported for tests and wiring.
type Store struct {
	mu       sync.RWMutex
	frame    *model.Frame
	lastErr  string
	errAt    time.Time
	interval time.Duration
}

func NewStore() *Store {
	return &Store{}
}

// Frame returns the latest frame, or nil before the first successful fetch.
func (s *Store) Frame() *model.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// LastError returns the message of the most recent failed refresh and when
// it happened. Cleared by the next successful fetch.
func (s *Store) LastError() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr, s.errAt
}

// Interval returns the currently selected refresh interval.
func (s *Store) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

func (s *Store) SetFrame(f *model.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = f
	s.lastErr = ""
	s.errAt = time.Time{}
}

func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg
	s.errAt = time.Now().UTC()
}

func (s *Store) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
}
