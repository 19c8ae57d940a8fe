package helpers

import (
	"sync"
)

func WithLock(l sync.Locker, f func()) {
	l.Lock()
	defer l.Unlock()
	f()
}

func WithRLock(l *sync.RWMutex, f func()) {
	l.RLock()
	defer l.RUnlock()
	f()
}
