package config

import (
	"sync"
	"sync/atomic"
)

// Patch is a partial settings update, typically received from the settings
// UI. Nil fields leave the current value untouched. Field names match the
// persisted settings record.
type Patch struct {
	RegistryURL      *string `json:"registryUrl,omitempty"`
	CacheTTLMinutes  *int    `json:"cacheTtlMinutes,omitempty"`
	BadgeEnabled     *bool   `json:"badgeEnabled,omitempty"`
	ScanMode         *string `json:"scanMode,omitempty"`
	ScanTiming       *string `json:"scanTiming,omitempty"`
	ScanDelaySeconds *int    `json:"scanDelay,omitempty"`
}

// Store holds the current Settings snapshot. Readers always observe a full,
// consistent snapshot; writers are serialized so a patch merges against the
// latest state.
type Store struct {
	mu       sync.Mutex
	current  atomic.Pointer[Settings]
	onChange []func(old, new Settings)
}

// NewStore creates a Store seeded with the given settings.
func NewStore(initial Settings) *Store {
	s := &Store{}
	initial = initial.Normalize()
	s.current.Store(&initial)
	return s
}

// Snapshot returns the current settings. The returned value is a copy and
// safe to retain.
func (s *Store) Snapshot() Settings {
	return *s.current.Load()
}

// Replace swaps in a full new settings snapshot, as after a config file
// reload, and notifies change listeners.
func (s *Store) Replace(next Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swap(next)
}

// Apply merges a partial patch into the current settings and returns the
// previous and the resulting snapshot.
func (s *Store) Apply(p Patch) (old, merged Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old = *s.current.Load()
	merged = old
	if p.RegistryURL != nil {
		merged.RegistryURL = *p.RegistryURL
	}
	if p.CacheTTLMinutes != nil {
		merged.CacheTTLMinutes = *p.CacheTTLMinutes
	}
	if p.BadgeEnabled != nil {
		merged.BadgeEnabled = *p.BadgeEnabled
	}
	if p.ScanMode != nil {
		merged.ScanMode = *p.ScanMode
	}
	if p.ScanTiming != nil {
		merged.ScanTiming = *p.ScanTiming
	}
	if p.ScanDelaySeconds != nil {
		merged.ScanDelaySeconds = *p.ScanDelaySeconds
	}
	merged = s.swap(merged)
	return old, merged
}

// OnChange registers a listener invoked after every snapshot swap, with the
// old and new settings. Listeners run on the writer's goroutine.
func (s *Store) OnChange(fn func(old, new Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Store) swap(next Settings) Settings {
	next = next.Normalize()
	old := *s.current.Load()
	s.current.Store(&next)
	for _, fn := range s.onChange {
		fn(old, next)
	}
	return next
}
