package task

import (
	"context"
	"sync"
)

const defaultQueueCapacity = 16

// Queue runs posted tasks one at a time on a single goroutine, the way a UI
// toolkit runs callbacks on its main thread.
type Queue struct {
	tasks        chan func()
	controlMutex sync.Mutex
	runtimeCtx   context.Context
	cancel       context.CancelFunc
	done         chan struct{}

	// postMutex is held for reading while a task is sent so the loop can
	// wait out in-flight posts before draining.
	postMutex sync.RWMutex
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &Queue{
		tasks: make(chan func(), capacity),
	}
}

func (queue *Queue) Start(ctx context.Context) {
	if queue == nil {
		return
	}
	queue.controlMutex.Lock()
	if queue.cancel != nil {
		queue.controlMutex.Unlock()
		return
	}
	runtimeCtx, cancel := context.WithCancel(ctx)
	queue.runtimeCtx = runtimeCtx
	queue.cancel = cancel
	done := make(chan struct{})
	queue.done = done
	queue.controlMutex.Unlock()

	go queue.loop(runtimeCtx, done)
}

// Post enqueues task. It returns false when the queue is not running. A task
// accepted by Post always runs, even when the queue stops before reaching it.
func (queue *Queue) Post(task func()) bool {
	if queue == nil || task == nil {
		return false
	}
	queue.controlMutex.Lock()
	runtimeCtx := queue.runtimeCtx
	queue.controlMutex.Unlock()
	if runtimeCtx == nil {
		return false
	}

	queue.postMutex.RLock()
	defer queue.postMutex.RUnlock()
	if runtimeCtx.Err() != nil {
		return false
	}
	select {
	case queue.tasks <- task:
		return true
	case <-runtimeCtx.Done():
		return false
	}
}

// Dispatch posts task, running it on the caller's goroutine when the queue is not running.
func (queue *Queue) Dispatch(task func()) {
	if task == nil {
		return
	}
	if !queue.Post(task) {
		task()
	}
}

// Call posts task and waits for it to finish.
func (queue *Queue) Call(task func()) bool {
	if queue == nil || task == nil {
		return false
	}
	queue.controlMutex.Lock()
	done := queue.done
	queue.controlMutex.Unlock()
	if done == nil {
		return false
	}
	finished := make(chan struct{})
	if !queue.Post(func() {
		defer close(finished)
		task()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-done:
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

func (queue *Queue) Stop() {
	if queue == nil {
		return
	}
	queue.controlMutex.Lock()
	cancel := queue.cancel
	done := queue.done
	queue.runtimeCtx = nil
	queue.cancel = nil
	queue.done = nil
	queue.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (queue *Queue) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			queue.drain()
			return
		case task := <-queue.tasks:
			task()
		}
	}
}

// drain runs the tasks accepted before the queue stopped. Posts issued by
// those tasks are refused, so Dispatch runs them inline.
func (queue *Queue) drain() {
	queue.postMutex.Lock()
	var pending []func()
	for collecting := true; collecting; {
		select {
		case task := <-queue.tasks:
			pending = append(pending, task)
		default:
			collecting = false
		}
	}
	queue.postMutex.Unlock()

	for _, task := range pending {
		task()
	}
}
