package mdreveal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs delayed tasks on a single logical thread. Every task posted
// to one Scheduler runs sequentially with every other task and every Do
// closure of that Scheduler.
type Scheduler interface {
	Post(delay time.Duration, fn func()) Task
}

// Task is a scheduled callback.
type Task interface {
	// Cancel prevents the task from running. It reports whether the task was
	// still pending.
	Cancel() bool
}

// Dispatcher marshals a closure onto the scheduler's thread.
type Dispatcher interface {
	Do(fn func()) bool
}

const (
	taskPending int32 = iota
	taskDone
	taskCancelled
)

type taskState struct {
	state atomic.Int32
}

func (t *taskState) claim() bool {
	return t.state.CompareAndSwap(taskPending, taskDone)
}

func (t *taskState) cancel() bool {
	return t.state.CompareAndSwap(taskPending, taskCancelled)
}

// Loop is a single-goroutine executor. Closures handed to Do and tasks posted
// with Post run one at a time on the goroutine that called Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

// NewLoop creates a Loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Do enqueues fn. It never blocks and is safe from any goroutine. It returns
// false once the loop has stopped.
func (l *Loop) Do(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Post runs fn on the loop after delay. A non-positive delay still goes
// through the queue, so Post never runs fn synchronously.
func (l *Loop) Post(delay time.Duration, fn func()) Task {
	t := &loopTask{}
	run := func() {
		if t.claim() {
			fn()
		}
	}
	if delay <= 0 {
		l.Do(run)
		return t
	}
	t.mu.Lock()
	t.timer = time.AfterFunc(delay, func() { l.Do(run) })
	t.mu.Unlock()
	return t
}

// Run executes queued closures until ctx is cancelled or Stop is called.
// It returns ctx.Err() when the context ended the loop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
		if stopped {
			return nil
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
		case <-l.wake:
		}
	}
}

// Stop makes Run return after draining the closures already queued.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.mu.Unlock()
	close(l.done)
}

type loopTask struct {
	taskState
	mu    sync.Mutex
	timer *time.Timer
}

func (t *loopTask) Cancel() bool {
	if !t.cancel() {
		return false
	}
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
	return true
}

// ManualScheduler is a Scheduler driven by an explicit clock. Tasks run only
// when the caller advances time, which makes reveal timing deterministic.
// Do runs the closure immediately on the caller's goroutine.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	taskState
	due time.Duration
	seq int
	fn  func()
}

func (t *manualTask) Cancel() bool {
	return t.cancel()
}

// NewManualScheduler returns a ManualScheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Post schedules fn at Now()+delay.
func (m *ManualScheduler) Post(delay time.Duration, fn func()) Task {
	if delay < 0 {
		delay = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{due: m.now + delay, seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Do runs fn immediately.
func (m *ManualScheduler) Do(fn func()) bool {
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Now returns the scheduler's current time offset.
func (m *ManualScheduler) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of tasks that have neither run nor been cancelled.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compact()
	return len(m.tasks)
}

// RunNext advances the clock to the earliest pending task and runs it. It
// reports whether a task ran.
func (m *ManualScheduler) RunNext() bool {
	m.mu.Lock()
	t := m.next(-1)
	if t == nil {
		m.mu.Unlock()
		return false
	}
	if t.due > m.now {
		m.now = t.due
	}
	m.mu.Unlock()
	if t.claim() {
		t.fn()
	}
	return true
}

// Advance moves the clock forward by d, running every task that falls due on
// the way in due order, including tasks posted by those tasks. It returns the
// number of tasks run.
func (m *ManualScheduler) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()
	ran := 0
	for {
		m.mu.Lock()
		t := m.next(target)
		if t == nil {
			m.now = target
			m.mu.Unlock()
			return ran
		}
		if t.due > m.now {
			m.now = t.due
		}
		m.mu.Unlock()
		if t.claim() {
			t.fn()
			ran++
		}
	}
}

// RunAll runs tasks until none are pending or limit tasks have run.
func (m *ManualScheduler) RunAll(limit int) int {
	ran := 0
	for ran < limit && m.RunNext() {
		ran++
	}
	return ran
}

// next returns the earliest pending task due at or before limit (any task
// when limit < 0). Caller holds m.mu.
func (m *ManualScheduler) next(limit time.Duration) *manualTask {
	m.compact()
	var best *manualTask
	for _, t := range m.tasks {
		if limit >= 0 && t.due > limit {
			continue
		}
		if best == nil || t.due < best.due || (t.due == best.due && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (m *ManualScheduler) compact() {
	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if t.state.Load() == taskPending {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(m.tasks); i++ {
		m.tasks[i] = nil
	}
	m.tasks = kept
}
