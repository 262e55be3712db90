package mappings

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	data map[string]*Mapping
	mu   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Mapping)}
}

func (s *MemoryStore) LoadAll(ctx context.Context) ([]*Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedCopy(s.data), nil
}

func (s *MemoryStore) Put(ctx context.Context, m *Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[m.SourceID] = m.Copy()
	return nil
}

func sortedCopy(data map[string]*Mapping) []*Mapping {
	res := make([]*Mapping, 0, len(data))
	for _, m := range data {
		res = append(res, m.Copy())
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].SourceID < res[j].SourceID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}
