package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize bounds derived-view memos.
const DefaultMemoSize = 1000

// Memo caches computed values under string keys, evicting the least
// recently used key once size is exceeded.
type Memo[V any] struct {
	lru *lru.Cache[string, V]
}

func NewMemo[V any](size int) (*Memo[V], error) {
	if size <= 0 {
		size = DefaultMemoSize
	}
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &Memo[V]{lru: c}, nil
}

// Get returns the cached value for key, computing and storing it on a miss.
func (m *Memo[V]) Get(key string, compute func() V) V {
	if v, ok := m.lru.Get(key); ok {
		return v
	}
	v := compute()
	m.lru.Add(key, v)
	return v
}

func (m *Memo[V]) Len() int {
	return m.lru.Len()
}

func (m *Memo[V]) Purge() {
	m.lru.Purge()
}
