package attendance

import "sync"

// keyLocker hands out one mutex per record key. Entries are reference
// counted and dropped once no caller holds or waits on them.
type keyLocker struct {
	mu    sync.Mutex
	locks map[RecordKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: make(map[RecordKey]*keyLock)}
}

// Lock blocks until k is free and returns its unlock function.
func (l *keyLocker) Lock(k RecordKey) (unlock func()) {
	l.mu.Lock()
	kl, ok := l.locks[k]
	if !ok {
		kl = &keyLock{}
		l.locks[k] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, k)
		}
		l.mu.Unlock()
	}
}

func (l *keyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
