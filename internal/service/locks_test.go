package service

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	var counter, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("book-1")
			defer unlock()
			mu.Lock()
			counter++
			if counter > max {
				max = counter
			}
			mu.Unlock()
			mu.Lock()
			counter--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if max != 1 {
		t.Fatalf("holders for one key overlapped: %d", max)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()
	unlockA := km.Lock("a")
	// Must not block while "a" is held.
	unlockB := km.Lock("b")
	unlockB()
	unlockA()
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	km := newKeyedMutex()
	unlock := km.Lock("a")
	unlock()
	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Fatalf("idle entries not released: %d", len(km.locks))
	}
}
