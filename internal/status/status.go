package status

import (
	"sync"
	"time"
)

// Phase is the high-level lifecycle state of the managed server.
type Phase string

const (
	PhaseNotInstalled Phase = "not-installed"
	PhaseInstalling   Phase = "installing"
	PhaseReinstalling Phase = "reinstalling"
	PhaseStarting     Phase = "starting"
	PhaseRunning      Phase = "running"
	PhaseIdle         Phase = "idle"
	PhaseError        Phase = "error"
)

// String returns the string representation of the phase.
func (p Phase) String() string { return string(p) }

// InProgress reports whether script output should be mirrored into the
// status message while this phase is active.
func (p Phase) InProgress() bool {
	switch p {
	case PhaseInstalling, PhaseStarting, PhaseReinstalling:
		return true
	default:
		return false
	}
}

// Status is a snapshot of the managed server's lifecycle state.
// It is mutated only through Store.Update; Running reflects the last
// health probe result and is authoritative over Phase.
type Status struct {
	Installed     bool       `json:"installed"`
	Running       bool       `json:"running"`
	Phase         Phase      `json:"phase"`
	Message       string     `json:"message"`
	Error         string     `json:"error,omitempty"`
	LastAction    string     `json:"lastAction,omitempty"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LogLine       string     `json:"logLine,omitempty"`
	InstallDir    string     `json:"installDir,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// New returns the initial status for a freshly started daemon.
func New(message string) Status {
	return Status{
		Phase:     PhaseNotInstalled,
		Message:   message,
		UpdatedAt: time.Now(),
	}
}

// Store is the single source of truth for the lifecycle status.
// All mutations funnel through Update, which serializes writers and
// notifies subscribers with the resulting snapshot.
type Store struct {
	mu   sync.Mutex
	cur  Status
	subs map[int]chan Status
	next int
}

// NewStore creates a store seeded with the given initial status.
func NewStore(initial Status) *Store {
	return &Store{cur: initial, subs: make(map[int]chan Status)}
}

// Snapshot returns a copy of the current status.
func (s *Store) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Update applies fn to the current status under the store lock, stamps
// UpdatedAt, and pushes the new snapshot to every subscriber. Delivery is
// fire-and-forget: a subscriber whose buffer is full misses the update.
func (s *Store) Update(fn func(*Status)) Status {
	s.mu.Lock()
	fn(&s.cur)
	s.cur.UpdatedAt = time.Now()
	snap := s.cur
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	s.mu.Unlock()
	return snap
}

// Subscribe registers an observer channel with the given buffer size.
// The returned cancel function unregisters the channel and closes it.
func (s *Store) Subscribe(buf int) (<-chan Status, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Status, buf)
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()
	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
