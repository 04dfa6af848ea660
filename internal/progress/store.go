package progress

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"demoflow/internal/steps"
)

// ErrOutOfRange reports an index outside the catalog.
var ErrOutOfRange = errors.New("index out of range")

// Snapshot is an immutable copy of the workflow position.
type Snapshot struct {
	Current           int
	Total             int
	Completed         []int
	Visited           []int
	CurrentGroupIndex int
	CurrentLabel      string
	IsFirst           bool
	IsLast            bool
}

// Listener receives a snapshot after every state change.
type Listener func(Snapshot)

// Store tracks the current step and completed steps for one session.
type Store struct {
	catalog *steps.Catalog

	mu        sync.Mutex
	current   int
	completed map[int]struct{}
	visited   map[int]struct{}
	listeners []Listener
}

// NewStore creates a store positioned at the first step with nothing completed.
func NewStore(catalog *steps.Catalog) *Store {
	if catalog == nil {
		catalog = steps.Default()
	}
	return &Store{
		catalog:   catalog,
		completed: make(map[int]struct{}),
		visited:   map[int]struct{}{0: {}},
	}
}

// Catalog returns the catalog the store indexes into.
func (s *Store) Catalog() *steps.Catalog { return s.catalog }

// Subscribe registers fn to be called after every change.
func (s *Store) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Current returns the current step index.
func (s *Store) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// IsFirst reports whether the current step is the first one.
func (s *Store) IsFirst() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == 0
}

// IsLast reports whether the current step is the last one.
func (s *Store) IsLast() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == s.catalog.Total()-1
}

// GoTo moves to index without any gating check.
func (s *Store) GoTo(index int) error {
	s.mu.Lock()
	if !s.catalog.Contains(index) {
		s.mu.Unlock()
		return fmt.Errorf("goto %d: %w", index, ErrOutOfRange)
	}
	changed := s.setCurrentLocked(index)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return nil
}

// ForceCurrent moves to index bypassing gating. It is reserved for
// system-initiated transitions.
func (s *Store) ForceCurrent(index int) error {
	return s.GoTo(index)
}

// Next advances by one step. It is a no-op on the last step.
func (s *Store) Next() bool {
	s.mu.Lock()
	if s.current >= s.catalog.Total()-1 {
		s.mu.Unlock()
		return false
	}
	s.setCurrentLocked(s.current + 1)
	s.mu.Unlock()
	s.notify()
	return true
}

// Previous moves back by one step. It is a no-op on the first step.
func (s *Store) Previous() bool {
	s.mu.Lock()
	if s.current == 0 {
		s.mu.Unlock()
		return false
	}
	s.setCurrentLocked(s.current - 1)
	s.mu.Unlock()
	s.notify()
	return true
}

// CanReach reports whether a user may navigate to index. Backward and
// same-step moves are always allowed; forward moves require the current step
// to be completed.
func (s *Store) CanReach(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index > s.current {
		_, done := s.completed[s.current]
		return done
	}
	return true
}

// MarkCompleted adds index to the completed set. Marking twice is a no-op.
func (s *Store) MarkCompleted(index int) error {
	s.mu.Lock()
	if !s.catalog.Contains(index) {
		s.mu.Unlock()
		return fmt.Errorf("mark completed %d: %w", index, ErrOutOfRange)
	}
	if _, ok := s.completed[index]; ok {
		s.mu.Unlock()
		return nil
	}
	s.completed[index] = struct{}{}
	s.mu.Unlock()
	s.notify()
	return nil
}

// IsCompleted reports whether index is marked done.
func (s *Store) IsCompleted(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[index]
	return ok
}

// IsVisited reports whether index has ever been the current step.
func (s *Store) IsVisited(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.visited[index]
	return ok
}

// ResetGroup rewinds to the first step of group g and clears completion for
// every later step in that group. The first step's completion is kept so the
// group does not lock itself on re-entry.
func (s *Store) ResetGroup(g int) error {
	start, end, ok := s.catalog.GroupRange(g)
	if !ok {
		return fmt.Errorf("reset group %d: %w", g, ErrOutOfRange)
	}
	s.mu.Lock()
	for idx := start + 1; idx < end; idx++ {
		delete(s.completed, idx)
	}
	s.setCurrentLocked(start)
	s.mu.Unlock()
	s.notify()
	return nil
}

// ResetCurrentGroup resets whichever group holds the current step.
func (s *Store) ResetCurrentGroup() error {
	return s.ResetGroup(s.CurrentGroupIndex())
}

// CurrentGroupIndex returns the group holding the current step.
func (s *Store) CurrentGroupIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, _ := s.catalog.GroupOf(s.current)
	return g
}

// CurrentGroup returns the group holding the current step.
func (s *Store) CurrentGroup() steps.Group {
	group, _ := s.catalog.Group(s.CurrentGroupIndex())
	return group
}

// CurrentLabel returns the label of the current step.
func (s *Store) CurrentLabel() string {
	def, _ := s.catalog.Definition(s.Current())
	return def.Label
}

// StepsInCurrentGroup returns the definitions of the current group.
func (s *Store) StepsInCurrentGroup() []steps.Definition {
	group := s.CurrentGroup()
	out := make([]steps.Definition, len(group.Steps))
	copy(out, group.Steps)
	return out
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	group, _ := s.catalog.GroupOf(s.current)
	def, _ := s.catalog.Definition(s.current)
	return Snapshot{
		Current:           s.current,
		Total:             s.catalog.Total(),
		Completed:         sortedKeys(s.completed),
		Visited:           sortedKeys(s.visited),
		CurrentGroupIndex: group,
		CurrentLabel:      def.Label,
		IsFirst:           s.current == 0,
		IsLast:            s.current == s.catalog.Total()-1,
	}
}

// CompletedSet returns a copy of the completed indices as a set.
func (s *Store) CompletedSet() map[int]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]bool, len(s.completed))
	for idx := range s.completed {
		out[idx] = true
	}
	return out
}

func (s *Store) setCurrentLocked(index int) bool {
	changed := s.current != index
	s.current = index
	s.visited[index] = struct{}{}
	return changed
}

func (s *Store) notify() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
