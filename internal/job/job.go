// Package job implements the bounded FIFO job manager of spec.md §4.6: a
// queue of runnable units with per-job lifecycle state, a bounded in-memory
// event ring, live fan-out to subscribers, cooperative cancellation, and a
// hard wall-clock timeout.
package job

import (
	"container/ring"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a job's position in the state machine of spec.md §3:
// queued -> running -> (done | error | cancelled), or queued -> cancelled
// directly if dequeued before start.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	switch s {
	case StateDone, StateError, StateCancelled:
		return true
	}
	return false
}

// EventKind discriminates the tagged union of spec.md §3/§9 ("implement
// events as a discriminated variant with a type tag, not as inheritance").
type EventKind string

const (
	EventLog      EventKind = "log"
	EventProgress EventKind = "progress"
	EventState    EventKind = "state"
)

// Event is one entry in a job's event ring. Only the fields relevant to
// Kind are populated; consumers switch on Kind.
type Event struct {
	Kind EventKind `json:"kind"`
	At   time.Time `json:"at"`

	// log
	Stream string `json:"stream,omitempty"` // "stdout" | "stderr"
	Line   string `json:"line,omitempty"`

	// progress
	ProgressKind string `json:"progressKind,omitempty"` // "git" | "deps"
	Percent      *int   `json:"percent,omitempty"`
	Detail       string `json:"detail,omitempty"`

	// state
	State   State  `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	eventRingSize   = 2000 // spec.md §3, §5
	historyRingSize = 100  // spec.md §3, §5
)

// Job is a unit of background work with a monotonic state machine and an
// append-only, bounded event ring (spec.md §3).
type Job struct {
	ID         string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	mu          sync.Mutex
	state       State
	errorCode   string
	errorMsg    string
	events      []Event // bounded ring, oldest dropped on overflow
	dropped     int
	subscribers map[*subscriber]struct{}
	cancelFn    func()
	cancelCtx   func() // cancels the context.Context handed to the runner
}

func newJob() *Job {
	return &Job{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		state:       StateQueued,
		subscribers: map[*subscriber]struct{}{},
	}
}

// State returns the job's current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Snapshot is the JSON-serialisable view of a job returned by jobs.get.
type Snapshot struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	CreatedAt  time.Time `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	Error      string    `json:"error,omitempty"`
	Events     []Event   `json:"events"`
}

// Snapshot returns the job's current state plus every buffered event.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := Snapshot{
		ID:        j.ID,
		State:     j.state,
		CreatedAt: j.CreatedAt,
		ErrorCode: j.errorCode,
		Error:     j.errorMsg,
		Events:    append([]Event(nil), j.events...),
	}
	if !j.StartedAt.IsZero() {
		t := j.StartedAt
		snap.StartedAt = &t
	}
	if !j.FinishedAt.IsZero() {
		t := j.FinishedAt
		snap.FinishedAt = &t
	}
	return snap
}

// subscriber receives every event emitted after it registers, plus (via
// Subscribe's replay) every event already buffered.
type subscriber struct {
	ch chan Event
}

// Subscribe registers for live events and returns a channel plus the
// currently buffered events to replay first (spec.md §4.6: "on subscribe,
// replay the current ring in order"). The caller must call unsubscribe once
// done (returned as the third value) to avoid leaking the channel.
func (j *Job) Subscribe() (replay []Event, live <-chan Event, unsubscribe func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, eventRingSize)}
	j.subscribers[sub] = struct{}{}
	replay = append([]Event(nil), j.events...)

	unsub := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.subscribers[sub]; ok {
			delete(j.subscribers, sub)
			close(sub.ch)
		}
	}
	return replay, sub.ch, unsub
}

// emit appends an event to the ring (dropping the oldest on overflow) and
// forwards it to every live subscriber. Callers must not hold j.mu.
func (j *Job) emit(ev Event) {
	ev.At = time.Now()

	j.mu.Lock()
	if len(j.events) >= eventRingSize {
		j.events = j.events[1:]
		j.dropped++
	}
	j.events = append(j.events, ev)
	subs := make([]*subscriber, 0, len(j.subscribers))
	for s := range j.subscribers {
		subs = append(subs, s)
	}
	j.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			// A slow subscriber never blocks the job; it will fall behind
			// and see gaps, but replay-on-subscribe means it never misses
			// the terminal event since Snapshot/Subscribe always includes
			// the ring's current tail.
		}
	}
}

func (j *Job) logLine(stream, line string) {
	j.emit(Event{Kind: EventLog, Stream: stream, Line: line})
}

func (j *Job) reportProgress(kind string, percent *int, detail string) {
	j.emit(Event{Kind: EventProgress, ProgressKind: kind, Percent: percent, Detail: detail})
}

// transitionTerminal moves the job into a terminal state exactly once. A
// second call (e.g. the runner resolving after a timeout already marked the
// job cancelled/error) is a no-op, per spec.md §4.6 ("the runner's eventual
// resolution must not overwrite a terminal state").
func (j *Job) transitionTerminal(state State, errorCode, message string) bool {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return false
	}
	j.state = state
	j.errorCode = errorCode
	j.errorMsg = message
	j.FinishedAt = time.Now()
	j.mu.Unlock()

	j.emit(Event{Kind: EventState, State: state, Message: message})
	return true
}

func (j *Job) transitionRunning() {
	j.mu.Lock()
	j.state = StateRunning
	j.StartedAt = time.Now()
	j.mu.Unlock()
	j.emit(Event{Kind: EventState, State: StateRunning})
}

// invokeCancel cancels the runner's context and invokes its runner-supplied
// cancel handle, if any. Safe to call more than once.
func (j *Job) invokeCancel() {
	j.mu.Lock()
	cancelCtx := j.cancelCtx
	cancelFn := j.cancelFn
	j.mu.Unlock()

	if cancelCtx != nil {
		cancelCtx()
	}
	if cancelFn != nil {
		cancelFn()
	}
}

func (j *Job) setCancel(fn func()) {
	j.mu.Lock()
	j.cancelFn = fn
	j.mu.Unlock()
}

func (j *Job) isCancelled() bool {
	return j.State() == StateCancelled
}

// RunContext is the interface a Runner uses to report progress and observe
// cancellation, per spec.md §4.6 ("Provide the runner a context offering
// ...").
type RunContext interface {
	LogStdout(line string)
	LogStderr(line string)
	Progress(kind string, percent *int, detail string)
	SetCancel(fn func())
	IsCancelled() bool
	Context() context.Context
}

type runCtx struct {
	job *Job
	ctx context.Context
}

func (r *runCtx) LogStdout(line string)                          { r.job.logLine("stdout", line) }
func (r *runCtx) LogStderr(line string)                          { r.job.logLine("stderr", line) }
func (r *runCtx) Progress(kind string, percent *int, detail string) { r.job.reportProgress(kind, percent, detail) }
func (r *runCtx) SetCancel(fn func())                             { r.job.setCancel(fn) }
func (r *runCtx) IsCancelled() bool                               { return r.job.isCancelled() }
func (r *runCtx) Context() context.Context                        { return r.ctx }

// Runner is the unit of work a job executes. Implementations (git clone/
// fetch, deps install) use rc to stream output and observe cancellation.
type Runner func(rc RunContext) error

type queuedJob struct {
	job    *Job
	runner Runner
}

// Manager owns the FIFO queue, concurrency cap, and job index described in
// spec.md §4.6, grounded on the teacher's session.Manager lifecycle
// bookkeeping (map + mutex, monitor goroutine per unit of work) translated
// from PTY sessions to background jobs.
type Manager struct {
	mu            sync.Mutex
	maxConcurrent int
	timeout       time.Duration
	running       int
	queue         []*queuedJob
	jobs          map[string]*Job
	history       *ring.Ring
	historyLen    int
}

// New returns a job manager with the given concurrency cap and per-job
// wall-clock timeout (spec.md §3: jobs.maxConcurrent >= 1, timeoutSeconds >
// 0).
func New(maxConcurrent int, timeout time.Duration) *Manager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Manager{
		maxConcurrent: maxConcurrent,
		timeout:       timeout,
		jobs:          map[string]*Job{},
		history:       ring.New(historyRingSize),
	}
}

// Enqueue creates a new job, registers it, and attempts to start it
// immediately if concurrency allows (spec.md §4.6).
func (m *Manager) Enqueue(runner Runner) *Job {
	j := newJob()

	m.mu.Lock()
	m.jobs[j.ID] = j
	if m.historyLen == historyRingSize {
		// The ring is full: the entry this write displaces names a job
		// that fell out of history and can be forgotten (spec.md §3,
		// "otherwise garbage-collectable once terminal and unsubscribed").
		if evictedID, ok := m.history.Value.(string); ok {
			if evicted, ok := m.jobs[evictedID]; ok && evicted.State().Terminal() {
				delete(m.jobs, evictedID)
			}
		}
	} else {
		m.historyLen++
	}
	m.history.Value = j.ID
	m.history = m.history.Next()
	m.queue = append(m.queue, &queuedJob{job: j, runner: runner})
	m.mu.Unlock()

	m.drain()
	return j
}

// Get returns the job with the given id, if it is still tracked.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok
}

// RunningCount reports how many jobs are currently in the running state,
// tested by spec.md §8's concurrency-cap invariant.
func (m *Manager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// drain starts queued jobs while running < maxConcurrent (spec.md §4.6).
func (m *Manager) drain() {
	for {
		m.mu.Lock()
		if m.running >= m.maxConcurrent || len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		qj := m.queue[0]
		m.queue = m.queue[1:]
		m.running++
		m.mu.Unlock()

		go m.start(qj)
	}
}

// start runs one job to completion, arming the wall-clock timeout and
// making sure running is decremented and drain() is retried no matter how
// the runner finishes (spec.md §4.6, "Always: clear timer; decrement
// running; drain again").
func (m *Manager) start(qj *queuedJob) {
	j := qj.job

	// A job cancelled while still queued never starts (spec.md §4.6: "If
	// queued: remove from queue, set state=cancelled ... return accepted").
	// cancel() already transitioned it; just release the concurrency slot.
	if j.State().Terminal() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
		m.drain()
		return
	}

	j.transitionRunning()

	ctx, cancel := context.WithCancel(context.Background())
	j.mu.Lock()
	j.cancelCtx = cancel
	j.mu.Unlock()

	timer := time.AfterFunc(m.timeout, func() {
		if j.transitionTerminal(StateError, "timeout", "operation timed out") {
			log.Printf("[JobManager] job %s exceeded %s timeout, cancelling", j.ID, m.timeout)
		}
		j.invokeCancel()
	})

	rc := &runCtx{job: j, ctx: ctx}

	err := qj.runner(rc)
	timer.Stop()
	cancel()

	if err != nil {
		j.transitionTerminal(StateError, "internal_error", err.Error())
	} else {
		j.transitionTerminal(StateDone, "", "")
	}

	m.mu.Lock()
	m.running--
	m.mu.Unlock()
	m.drain()
}

// Cancel implements spec.md §4.6's cancel(id): queued jobs are pulled from
// the queue and marked cancelled without ever starting; running jobs invoke
// their cancel handle best-effort and are marked cancelled immediately
// rather than waiting for the child process to actually die.
func (m *Manager) Cancel(id string) (accepted bool, alreadyTerminal bool, err error) {
	j, ok := m.Get(id)
	if !ok {
		return false, false, fmt.Errorf("job %s not found", id)
	}

	if j.State().Terminal() {
		return false, true, nil
	}

	m.mu.Lock()
	for i, qj := range m.queue {
		if qj.job.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	changed := j.transitionTerminal(StateCancelled, "", "cancelled")
	if changed {
		j.invokeCancel()
	}
	return changed, !changed, nil
}
