package scenario

import "math/rand/v2"

// Store exposes scenario retrieval for the persona service and HTTP handlers.
type Store interface {
	List() []Scenario
	FindByID(id string) (Scenario, bool)
	Random() (Scenario, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Scenario
	pick  func(n int) int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied scenarios.
func NewMemoryStore(items []Scenario) *MemoryStore {
	return &MemoryStore{items: append([]Scenario(nil), items...), pick: rand.IntN}
}

// List returns a copy of every scenario.
func (s *MemoryStore) List() []Scenario {
	return append([]Scenario(nil), s.items...)
}

// FindByID looks up a scenario by identifier.
func (s *MemoryStore) FindByID(id string) (Scenario, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Scenario{}, false
}

// Random 随机挑选一个场景，每次调用相互独立。
func (s *MemoryStore) Random() (Scenario, bool) {
	if len(s.items) == 0 {
		return Scenario{}, false
	}
	return s.items[s.pick(len(s.items))], true
}
