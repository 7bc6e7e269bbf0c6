package queue

import "sync"

type Job func()

// KeyedQueue runs jobs one at a time per key while keys run concurrently.
// Jobs for the same key run in enqueue order on a goroutine that drains the
// key's backlog and exits when it is empty.
type KeyedQueue struct {
	mu      sync.Mutex
	pending map[int64][]Job
	running map[int64]bool
	wg      sync.WaitGroup
}

func NewKeyedQueue() *KeyedQueue {
	return &KeyedQueue{
		pending: make(map[int64][]Job),
		running: make(map[int64]bool),
	}
}

func (q *KeyedQueue) Enqueue(key int64, job Job) {
	q.mu.Lock()
	q.pending[key] = append(q.pending[key], job)
	if q.running[key] {
		q.mu.Unlock()
		return
	}
	q.running[key] = true
	q.wg.Add(1)
	q.mu.Unlock()

	go q.drain(key)
}

func (q *KeyedQueue) drain(key int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		jobs := q.pending[key]
		if len(jobs) == 0 {
			delete(q.pending, key)
			delete(q.running, key)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[key] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}

// ActiveKeys reports how many keys currently have a running drainer.
func (q *KeyedQueue) ActiveKeys() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running)
}

// Wait blocks until every enqueued job has finished. Enqueue after Wait
// has returned is fine; Enqueue concurrent with Wait is not.
func (q *KeyedQueue) Wait() {
	q.wg.Wait()
}
