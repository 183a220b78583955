package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WorkerPool manages a bounded pool of goroutines. An optional fixed-interval
// rate limiter paces job starts across the whole pool, so external services
// see a steady request rate no matter how many workers are running.
type WorkerPool struct {
	semaphore chan struct{}
	limiter   *rate.Limiter
	wg        sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool with the given concurrency.
// If minInterval > 0, job starts are spaced at least minInterval apart in
// aggregate, with a burst allowance equal to the pool size.
func NewWorkerPool(maxWorkers int, minInterval time.Duration) *WorkerPool {
	wp := &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
	}
	if minInterval > 0 {
		wp.limiter = rate.NewLimiter(rate.Every(minInterval), maxWorkers)
	}
	return wp
}

// Submit enqueues a job for execution in the pool. It blocks while all
// workers are busy.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		if wp.limiter != nil {
			_ = wp.limiter.Wait(context.Background())
		}
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// KeySet is a set of business keys. The upsert engine owns one instance and
// passes it by handle; it is never package-level state. The engine itself is
// single-threaded, but the set stays lockable so tests and future callers
// cannot race it.
type KeySet struct {
	mu   sync.RWMutex
	seen map[int64]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[int64]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key is present.
func (s *KeySet) Contains(key int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
