package pools

import (
	"runtime"
	"sync/atomic"
)

// Task is a unit of blocking work submitted to a WorkerPool.
type Task func()

// WorkerPool is a work-stealing goroutine pool used as the blocking
// task executor for handlers that must not run on the raw listener's
// event-loop goroutine (CGO calls, filesystem access, anything that
// can block longer than a read/write syscall).
type WorkerPool struct {
	numWorkers int
	queues     []*workerQueue
	workers    []*worker
	closed     atomic.Bool

	stats struct {
		tasksSubmitted atomic.Uint64
		tasksCompleted atomic.Uint64
		stealsSuccess  atomic.Uint64
		stealsFailed   atomic.Uint64
	}
}

type workerQueue struct {
	tasks chan Task
	id    int
}

type worker struct {
	id    int
	pool  *WorkerPool
	queue *workerQueue
}

// NewWorkerPool creates a work-stealing pool of numWorkers goroutines.
// numWorkers <= 0 defaults to runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		numWorkers: numWorkers,
		queues:     make([]*workerQueue, numWorkers),
		workers:    make([]*worker, numWorkers),
	}

	for i := 0; i < numWorkers; i++ {
		pool.queues[i] = &workerQueue{tasks: make(chan Task, 256), id: i}
	}
	for i := 0; i < numWorkers; i++ {
		w := &worker{id: i, pool: pool, queue: pool.queues[i]}
		pool.workers[i] = w
		go w.run()
	}

	return pool
}

// Submit enqueues task on a worker chosen round-robin, trying the next
// worker's queue if that one is full and falling back to running it
// inline if both are full. Returns false if the pool is already closed.
func (p *WorkerPool) Submit(task Task) bool {
	if p.closed.Load() {
		return false
	}

	p.stats.tasksSubmitted.Add(1)
	idx := int(p.stats.tasksSubmitted.Load()) % p.numWorkers

	select {
	case p.queues[idx].tasks <- task:
		return true
	default:
		idx = (idx + 1) % p.numWorkers
		select {
		case p.queues[idx].tasks <- task:
			return true
		default:
			task()
			p.stats.tasksCompleted.Add(1)
			return true
		}
	}
}

func (w *worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case task := <-w.queue.tasks:
			if task == nil {
				return
			}
			task()
			w.pool.stats.tasksCompleted.Add(1)
			continue
		default:
		}

		if w.trySteal() {
			continue
		}

		task, ok := <-w.queue.tasks
		if !ok || task == nil {
			return
		}
		task()
		w.pool.stats.tasksCompleted.Add(1)
	}
}

func (w *worker) trySteal() bool {
	numWorkers := w.pool.numWorkers
	start := (w.id + 1) % numWorkers

	for i := 0; i < numWorkers-1; i++ {
		victim := w.pool.queues[(start+i)%numWorkers]
		select {
		case task := <-victim.tasks:
			if task != nil {
				w.pool.stats.stealsSuccess.Add(1)
				task()
				w.pool.stats.tasksCompleted.Add(1)
				return true
			}
		default:
		}
	}

	w.pool.stats.stealsFailed.Add(1)
	return false
}

// Close stops accepting new tasks and signals every worker to drain
// and exit once its queue is empty.
func (p *WorkerPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for _, q := range p.queues {
		close(q.tasks)
	}
}

// Stats reports pool throughput and work-stealing counters.
func (p *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: p.stats.tasksSubmitted.Load(),
		TasksCompleted: p.stats.tasksCompleted.Load(),
		TasksPending:   p.stats.tasksSubmitted.Load() - p.stats.tasksCompleted.Load(),
		StealsSuccess:  p.stats.stealsSuccess.Load(),
		StealsFailed:   p.stats.stealsFailed.Load(),
	}
}

// WorkerPoolStats reports pool throughput and work-stealing counters.
type WorkerPoolStats struct {
	NumWorkers     int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPending   uint64
	StealsSuccess  uint64
	StealsFailed   uint64
}
