package localstore

import (
	"maps"
	"sync"
)

type MemoryStorage struct {
	mu   sync.Mutex
	docs map[string]map[string]any
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{docs: make(map[string]map[string]any)}
}

func (s *MemoryStorage) Load(key string) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	return maps.Clone(doc), true, nil
}

func (s *MemoryStorage) Save(key string, doc map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[key] = maps.Clone(doc)
	return nil
}

func (s *MemoryStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, key)
	return nil
}
