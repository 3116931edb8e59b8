package feed

import (
	"context"
	"sync"
	"time"
)

// Sessions holds one Coordinator per viewer for the HTTP API. Idle
// coordinators are dropped by Sweep.
type Sessions struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	coord    *Coordinator
	lastSeen time.Time
}

// NewSessions keeps a viewer's coordinator for ttl after its last use.
func NewSessions(src Source, ttl time.Duration) *Sessions {
	return &Sessions{
		src:      src,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Get returns the viewer's coordinator. A new one is created and loaded on
// first use; if that first load fails it is not kept.
func (s *Sessions) Get(ctx context.Context, viewerID string) (*Coordinator, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[viewerID]; ok {
		sess.lastSeen = s.now()
		s.mu.Unlock()
		return sess.coord, nil
	}
	s.mu.Unlock()

	coord := NewCoordinator(s.src, viewerID)
	if err := coord.Load(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have created one meanwhile; keep the first.
	if sess, ok := s.sessions[viewerID]; ok {
		sess.lastSeen = s.now()
		return sess.coord, nil
	}
	s.sessions[viewerID] = &session{coord: coord, lastSeen: s.now()}
	return coord, nil
}

// Sweep drops coordinators idle for longer than the ttl and returns how many
// were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
