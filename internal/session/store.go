// Package session persists the local credential pair and user snapshot.
//
// The store is a passive surface: no network calls, no validation. The auth
// reconciler is its only writer. Token pair and user snapshot are saved and
// cleared together so neither can outlive the other.
package session

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
)

// Snapshot is the unit of persistence: the credential pair plus the user it
// resolves to. Both halves are written and wiped atomically.
type Snapshot struct {
	Session models.Session
	User    models.User
}

// Store defines the persistence contract for the canonical session.
type Store interface {
	Load() (*Snapshot, error) // Load returns the stored snapshot, or nil when none exists
	Save(Snapshot) error      // Save replaces the stored snapshot
	Clear() error             // Clear removes the stored snapshot
}

// MemoryStore keeps the snapshot in process memory only.
type MemoryStore struct {
	mu   sync.Mutex
	snap *Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, nil
	}
	snap := *m.snap
	return &snap, nil
}

func (m *MemoryStore) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
	return nil
}

// Fallback wraps a durable store and degrades to in-memory persistence for
// the rest of the process lifetime if the durable store fails. Degradation is
// logged once; callers continue unauthenticated-but-working rather than
// crashing on storage errors.
type Fallback struct {
	mu       sync.Mutex
	durable  Store
	memory   *MemoryStore
	degraded bool
	logger   *log.Logger
}

// NewFallback wraps durable with in-memory degradation.
func NewFallback(durable Store, logger *log.Logger) *Fallback {
	return &Fallback{
		durable: durable,
		memory:  NewMemoryStore(),
		logger:  logger,
	}
}

// Degraded reports whether the durable store has been abandoned.
func (f *Fallback) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *Fallback) active() Store {
	if f.degraded {
		return f.memory
	}
	return f.durable
}

func (f *Fallback) degrade(op string, err error) {
	f.degraded = true
	if f.logger != nil {
		f.logger.Warn("session storage unavailable, continuing in-memory", "op", op, "error", err)
	}
}

func (f *Fallback) Load() (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, err := f.active().Load()
	if err != nil {
		f.degrade("load", err)
		return f.memory.Load()
	}
	return snap, nil
}

func (f *Fallback) Save(snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.active().Save(snap); err != nil {
		f.degrade("save", err)
		return f.memory.Save(snap)
	}
	if !f.degraded {
		// Mirror into memory so a later degradation does not lose the session.
		_ = f.memory.Save(snap)
	}
	return nil
}

func (f *Fallback) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_ = f.memory.Clear()
	if err := f.active().Clear(); err != nil {
		f.degrade("clear", err)
	}
	return nil
}
