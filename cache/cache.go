package cache

import (
	"sync"
)

type Cache[T interface{}] struct {
	cache map[string]T
	mutex sync.RWMutex
}

func New[T interface{}]() *Cache[T] {
	return &Cache[T]{
		cache: make(map[string]T),
	}
}

func (c *Cache[T]) Lookup(key string) (T, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	info, ok := c.cache[key]
	return info, ok
}

// GetOrStore returns the value under key, storing the result of create first if there is none.
// The boolean reports whether the value was already there.
func (c *Cache[T]) GetOrStore(key string, create func() T) (T, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if info, ok := c.cache[key]; ok {
		return info, true
	}
	info := create()
	c.cache[key] = info
	return info, false
}

// RemoveIf deletes the value under key if remove returns true for it
func (c *Cache[T]) RemoveIf(key string, remove func(T) bool) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	info, ok := c.cache[key]
	if !ok || !remove(info) {
		return false
	}
	delete(c.cache, key)
	return true
}
