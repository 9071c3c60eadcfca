package identity

import "sync"

// CookieSource yields the current value of a visitor cookie by name. The
// tracking cookie may not exist yet when resolution starts (the vendor script
// that sets it loads asynchronously), so absence is an expected state.
type CookieSource interface {
	Get(name string) (string, bool)
}

// Snapshot is a CookieSource fed from submit payloads: each request carries
// the browser's current cookie snapshot and the handler merges it in before
// dispatching. The resolver's cookie wait then observes the newest values.
type Snapshot struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string]string)}
}

// Update merges cookies into the snapshot. Empty values are ignored so a
// request without the tracking cookie cannot erase one seen earlier.
func (s *Snapshot) Update(cookies map[string]string) {
	if len(cookies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, value := range cookies {
		if value != "" {
			s.values[name] = value
		}
	}
}

func (s *Snapshot) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok && v != ""
}
