package fractalx

import (
	"sort"
	"sync"
)

// Space is the live instance of a definition at one id. It is created by
// merge, its state is replaced only by Execute, and it is removed by unmerge.
type Space struct {
	Ctx    *Context
	Inputs map[string]Input
	Def    *Definition

	mu    sync.RWMutex
	state any
}

// State returns the current state of the space.
func (s *Space) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Space) setState(state any) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Index maps hierarchical ids to component spaces. One Index is shared by
// every context of a tree. Only map access is guarded; user code never runs
// while the lock is held.
type Index struct {
	mu     sync.RWMutex
	spaces map[string]*Space
}

func newIndex() *Index {
	return &Index{spaces: make(map[string]*Space)}
}

// Get returns the space installed at id.
func (ix *Index) Get(id string) (*Space, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	sp, ok := ix.spaces[id]
	return sp, ok
}

// Has reports whether id is installed.
func (ix *Index) Has(id string) bool {
	_, ok := ix.Get(id)
	return ok
}

// Len returns the number of installed spaces.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.spaces)
}

// IDs returns the installed ids in sorted order.
func (ix *Index) IDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]string, 0, len(ix.spaces))
	for id := range ix.spaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (ix *Index) put(id string, sp *Space) {
	ix.mu.Lock()
	ix.spaces[id] = sp
	ix.mu.Unlock()
}

func (ix *Index) remove(id string) {
	ix.mu.Lock()
	delete(ix.spaces, id)
	ix.mu.Unlock()
}

// reset empties the index and returns what it held.
func (ix *Index) reset() map[string]*Space {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	last := ix.spaces
	ix.spaces = make(map[string]*Space)
	return last
}
