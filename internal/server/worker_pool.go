package server

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Mattia055/Hotelier2.0/internal/metrics"
)

// Task is one unit of request processing handed off by the event loop.
type Task func()

// WorkerPool runs request handlers on a fixed set of goroutines so the
// event loop never blocks on application logic.
//
// The task queue is bounded. When it is full, Submit refuses the task and
// the caller treats the connection as overloaded; dropping work keeps the
// loop responsive instead of letting goroutines pile up.
type WorkerPool struct {
	workerCount  int
	taskQueue    chan Task
	ctx          context.Context
	wg           sync.WaitGroup
	droppedTasks int64
	logger       zerolog.Logger
}

// NewWorkerPool creates a pool with workerCount goroutines and a queue of
// queueSize pending tasks.
func NewWorkerPool(workerCount, queueSize int, logger zerolog.Logger) *WorkerPool {
	return &WorkerPool{
		workerCount: workerCount,
		taskQueue:   make(chan Task, queueSize),
		logger:      logger.With().Str("component", "worker_pool").Logger(),
	}
}

// Start launches the workers. Must be called before Submit.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.ctx = ctx
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case task := <-wp.taskQueue:
			if task != nil {
				wp.runTask(task)
			}
		case <-wp.ctx.Done():
			wp.logger.Debug().Msg("worker shutting down")
			return
		}
	}
}

// runTask executes one task with panic recovery so a handler bug kills at
// most one request, never a worker.
func (wp *WorkerPool) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error().
				Interface("panic_value", r).
				Str("stack_trace", string(debug.Stack())).
				Msg("worker panic recovered, task failed but worker continues")
		}
	}()
	task()
}

// Submit enqueues a task and reports whether it was accepted. A full queue
// rejects the task; the caller decides what that means for its connection.
func (wp *WorkerPool) Submit(task Task) bool {
	select {
	case wp.taskQueue <- task:
		metrics.WorkerQueueDepthSet(len(wp.taskQueue))
		return true
	default:
		atomic.AddInt64(&wp.droppedTasks, 1)
		metrics.WorkerTaskDropped()
		return false
	}
}

// Stop waits for all workers to exit. The pool's context must be canceled
// first.
func (wp *WorkerPool) Stop() {
	wp.wg.Wait()
}

// DroppedTasks returns how many tasks were refused by a full queue.
func (wp *WorkerPool) DroppedTasks() int64 {
	return atomic.LoadInt64(&wp.droppedTasks)
}

// QueueDepth returns the number of tasks waiting.
func (wp *WorkerPool) QueueDepth() int {
	return len(wp.taskQueue)
}

// QueueCapacity returns the queue's maximum size.
func (wp *WorkerPool) QueueCapacity() int {
	return cap(wp.taskQueue)
}
