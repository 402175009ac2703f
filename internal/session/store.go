// Package session tracks per-page-session scan state: the last computed
// match count, the time of the last completed scan, and any pending scheduled
// scan. State is in-memory only and rebuilt from scratch on restart.
package session

import (
	"sync"
	"time"
)

type entry struct {
	count         int
	lastScanAt    time.Time
	cancelPending func()
	generation    uint64
}

// Store is an in-memory registry of session state keyed by the opaque
// session id. All session lookups in the system go through a Store; entries
// are created lazily on first use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

func (s *Store) get(id string) *entry {
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}
	return e
}

// SetCount records the match count for a session.
func (s *Store) SetCount(id string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(id).count = count
}

// Count returns the last recorded match count, or 0 for an unknown session.
func (s *Store) Count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e.count
	}
	return 0
}

// MarkScanned records the completion time of an executed scan. It feeds the
// scheduler's cooldown gate.
func (s *Store) MarkScanned(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(id).lastScanAt = at
}

// LastScanAt returns the completion time of the session's last executed
// scan. ok is false when the session has never finished a scan.
func (s *Store) LastScanAt(id string) (at time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, exists := s.sessions[id]
	if !exists || e.lastScanAt.IsZero() {
		return time.Time{}, false
	}
	return e.lastScanAt, true
}

// SetPending installs the cancel function of a newly scheduled scan,
// cancelling any previously pending one (last trigger wins).
func (s *Store) SetPending(id string, cancel func()) {
	s.mu.Lock()
	e := s.get(id)
	prev := e.cancelPending
	e.cancelPending = cancel
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// ClearPending drops the pending handle without cancelling, used when the
// scheduled scan has fired.
func (s *Store) ClearPending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.cancelPending = nil
	}
}

// BumpGeneration advances and returns the session's scan generation. Results
// of scans started under an older generation are discarded.
func (s *Store) BumpGeneration(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.get(id)
	e.generation++
	return e.generation
}

// Generation returns the session's current scan generation.
func (s *Store) Generation(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e.generation
	}
	return 0
}

// Clear removes a session's count and scan time, cancels a pending scan if
// one exists, and invalidates in-flight scans by advancing the generation.
// The session id itself may be reused afterwards.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	var cancel func()
	if ok {
		cancel = e.cancelPending
		gen := e.generation + 1
		s.sessions[id] = &entry{generation: gen}
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// ClearAll clears every tracked session and returns the ids that were
// present, so callers can blank their badges.
func (s *Store) ClearAll() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	cancels := make([]func(), 0, len(s.sessions))
	for id, e := range s.sessions {
		ids = append(ids, id)
		if e.cancelPending != nil {
			cancels = append(cancels, e.cancelPending)
		}
		s.sessions[id] = &entry{generation: e.generation + 1}
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return ids
}
