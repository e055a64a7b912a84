package pipeline

import (
	"runtime"
	"strings"
	"sync"
)

// caseInsensitiveFS is true where Mod and mod name the same directory.
var caseInsensitiveFS = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// keyedMutex hands out one mutex per key and forgets keys nobody holds. With
// fold set, keys differing only in case share a mutex.
type keyedMutex struct {
	mu    sync.Mutex
	fold  bool
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex(fold bool) *keyedMutex {
	return &keyedMutex{fold: fold, locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	if k.fold {
		key = strings.ToLower(key)
	}

	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
