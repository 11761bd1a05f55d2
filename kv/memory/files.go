package memory

import (
	"sync"

	"go.miragespace.co/filering/spec/chord"

	"github.com/zhangyunhao116/skipmap"
	"github.com/zhangyunhao116/skipset"
)

type HashFn func(string) int

// FileStore holds the names of files in custody of one node, bucketed by
// their ring key. Single-name operations run concurrently, while the bulk
// extractions used by handoff are exclusive.
type FileStore struct {
	mu     sync.RWMutex
	s      *skipmap.IntMap[*skipset.StringSet]
	hashFn HashFn
}

func newInnerSetFunc() *skipset.StringSet {
	return skipset.NewString()
}

func WithHashFn(fn HashFn) *FileStore {
	return &FileStore{
		s:      skipmap.NewInt[*skipset.StringSet](),
		hashFn: fn,
	}
}

func (m *FileStore) Add(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, _ := m.s.LoadOrStoreLazy(m.hashFn(name), newInnerSetFunc)
	return set.Add(name)
}

func (m *FileStore) Contains(name string) bool {
	set, ok := m.s.Load(m.hashFn(name))
	if !ok {
		return false
	}
	return set.Contains(name)
}

// Merge adds every name and returns how many were not held before.
func (m *FileStore) Merge(names []string) int {
	added := 0
	for _, name := range names {
		if m.Add(name) {
			added++
		}
	}
	return added
}

// Range visits names in key order, then name order.
func (m *FileStore) Range(fn func(key int, name string) bool) {
	m.s.Range(func(key int, set *skipset.StringSet) bool {
		cont := true
		set.Range(func(name string) bool {
			cont = fn(key, name)
			return cont
		})
		return cont
	})
}

func (m *FileStore) List() []string {
	names := make([]string, 0)
	m.Range(func(_ int, name string) bool {
		names = append(names, name)
		return true
	})
	return names
}

func (m *FileStore) Len() int {
	n := 0
	m.s.Range(func(_ int, set *skipset.StringSet) bool {
		n += set.Len()
		return true
	})
	return n
}

// RangeNames returns the names whose key lies in the ring interval (low, high].
func (m *FileStore) RangeNames(low, high int) []string {
	names := make([]string, 0)
	m.s.Range(func(key int, set *skipset.StringSet) bool {
		if chord.Between(low, high, key) {
			set.Range(func(name string) bool {
				names = append(names, name)
				return true
			})
		}
		return true
	})
	return names
}

// Partition removes and returns the names whose key lies in (low, high].
func (m *FileStore) Partition(low, high int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0)
	keys := make([]int, 0)
	m.s.Range(func(key int, set *skipset.StringSet) bool {
		if chord.Between(low, high, key) {
			set.Range(func(name string) bool {
				names = append(names, name)
				return true
			})
			keys = append(keys, key)
		}
		return true
	})
	for _, key := range keys {
		m.s.Delete(key)
	}
	return names
}

// Drain removes and returns every name.
func (m *FileStore) Drain() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := m.List()
	m.s.Range(func(key int, _ *skipset.StringSet) bool {
		m.s.Delete(key)
		return true
	})
	return names
}
