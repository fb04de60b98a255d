package surgtile

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

const (
	// MaxWorkers caps the default pool size so a many core machine does not
	// flood the remote detection service
	MaxWorkers = 8
)

// ErrPoolClosed is returned when submitting work to a closed pool
var ErrPoolClosed = errors.New("pool is closed")

// Pool is a fixed size pool of worker goroutines fed from a fixed size task
// queue
type Pool struct {
	// tasks is the queue of pending work
	tasks chan func()
	// size of pool
	size int
	// mu guards closed against concurrent Submit and Close
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	close  sync.Once
}

// DefaultWorkers returns the number of CPU cores capped at MaxWorkers
func DefaultWorkers() int {
	n := runtime.NumCPU()

	if n > MaxWorkers {
		return MaxWorkers
	}

	if n < 1 {
		return 1
	}

	return n
}

// NewPool creates a new worker pool of the given size.  queueSize is the
// number of tasks that can wait for a free worker before Submit blocks, a
// value <= 0 uses the pool size.
func NewPool(size, queueSize int) (*Pool, error) {

	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "pool size must be positive, got %d", size)
	}

	if queueSize <= 0 {
		queueSize = size
	}

	p := &Pool{
		tasks: make(chan func(), queueSize),
		size:  size,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p, nil
}

// worker runs queued tasks until the queue is closed
func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		task()
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Submit queues the task, blocking while the queue is full
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.tasks <- task
	return nil
}

// Close the pool and wait for queued tasks to finish
func (p *Pool) Close() {
	p.close.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()

		p.wg.Wait()
	})
}
