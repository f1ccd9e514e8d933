package wizard

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/polizas/apperr"
)

type entry struct {
	mu  sync.Mutex // serializes writers, held across backend calls
	cur atomic.Pointer[State]
}

// Store keeps wizards in memory. Each wizard has its own writer lock so a
// slow backend call on one wizard never blocks the others. Writers on the
// same wizard queue behind an in-flight call; readers see the last committed
// state and never wait. Nothing is persisted.
type Store struct {
	mu      sync.RWMutex
	wizards map[string]*entry
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{wizards: make(map[string]*entry)}
}

func notFound(op string) error {
	return apperr.New(apperr.KindNotFound, op, "asistente no encontrado")
}

// Put adds a new wizard.
func (s *Store) Put(st *State) {
	e := &entry{}
	e.cur.Store(st.clone())
	s.mu.Lock()
	s.wizards[st.ID] = e
	s.mu.Unlock()
}

func (s *Store) find(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.wizards[id]
	return e, ok
}

// lock returns the entry with its writer lock held.
func (s *Store) lock(op, id, owner string) (*entry, error) {
	e, ok := s.find(id)
	if !ok {
		return nil, notFound(op)
	}
	e.mu.Lock()
	if st := e.cur.Load(); st == nil || st.Owner != owner {
		e.mu.Unlock()
		return nil, notFound(op)
	}
	return e, nil
}

// Get returns a copy of the last committed state of the wizard. It does not
// wait for a running Update. Wizards of another owner are reported as not
// found.
func (s *Store) Get(id, owner string) (*State, error) {
	e, ok := s.find(id)
	if !ok {
		return nil, notFound("wizard.get")
	}
	st := e.cur.Load()
	if st == nil || st.Owner != owner {
		return nil, notFound("wizard.get")
	}
	return st.clone(), nil
}

// Update runs fn on a working copy of the wizard while holding its writer
// lock. The copy replaces the stored wizard only when fn returns nil.
func (s *Store) Update(id, owner string, now time.Time, fn func(*State) error) (*State, error) {
	e, err := s.lock("wizard.update", id, owner)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	work := e.cur.Load().clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = now
	e.cur.Store(work)
	return work.clone(), nil
}

// Delete removes a wizard, waiting for a running Update to finish.
func (s *Store) Delete(id, owner string) error {
	e, err := s.lock("wizard.delete", id, owner)
	if err != nil {
		return err
	}
	e.cur.Store(nil)
	e.mu.Unlock()

	s.forget([]string{id})
	return nil
}

// DropOwner removes every wizard of owner and returns how many went away.
// A wizard busy in a backend call is dropped once that call returns.
func (s *Store) DropOwner(owner string) int {
	var dropped []string
	for id, e := range s.snapshot() {
		e.mu.Lock()
		if st := e.cur.Load(); st != nil && st.Owner == owner {
			e.cur.Store(nil)
			dropped = append(dropped, id)
		}
		e.mu.Unlock()
	}
	s.forget(dropped)
	return len(dropped)
}

func (s *Store) snapshot() map[string]*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.wizards)
}

func (s *Store) forget(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	for _, id := range ids {
		delete(s.wizards, id)
	}
	s.mu.Unlock()
}

// DropIdle removes wizards not touched since cutoff. Busy wizards are kept.
func (s *Store) DropIdle(cutoff time.Time) int {
	var dropped []string
	for id, e := range s.snapshot() {
		if !e.mu.TryLock() {
			continue
		}
		if st := e.cur.Load(); st == nil || st.UpdatedAt.Before(cutoff) {
			e.cur.Store(nil)
			dropped = append(dropped, id)
		}
		e.mu.Unlock()
	}
	s.forget(dropped)
	return len(dropped)
}

// List returns copies of the owner's wizards, oldest first. Like Get it
// reports committed state only.
func (s *Store) List(owner string) []*State {
	out := []*State{}
	for _, e := range s.snapshot() {
		if st := e.cur.Load(); st != nil && st.Owner == owner {
			out = append(out, st.clone())
		}
	}
	slices.SortFunc(out, func(a, b *State) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Len returns the number of live wizards.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wizards)
}
