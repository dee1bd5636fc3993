package progress

import (
	"sync"
	"time"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

type Status string

const (
	StatusNone      Status = ""
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

type Snapshot struct {
	RunID   string    `json:"runId"`
	Rule    string    `json:"rule"`
	State   State     `json:"state"`
	Status  Status    `json:"status,omitempty"`
	Value   float64   `json:"value"`
	Updated time.Time `json:"updated"`
}

// Terminal reports whether the snapshot closes a pass.
func (s Snapshot) Terminal() bool {
	return s.State == StateIdle && s.Status != StatusNone
}

// Reporter tracks completion of a single recompute pass. One Reporter exists
// per run; there is no process-wide instance.
type Reporter struct {
	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]chan Snapshot
	nextID int
	now    func() time.Time
}

func NewReporter(runID, rule string) *Reporter {
	r := &Reporter{
		subs: make(map[int]chan Snapshot),
		now:  func() time.Time { return time.Now().UTC() },
	}
	r.snap = Snapshot{RunID: runID, Rule: rule, State: StateIdle, Updated: r.now()}
	return r
}

func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Start moves the reporter to running at zero and clears any previous status.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.State = StateRunning
	r.snap.Status = StatusNone
	r.snap.Value = 0
	r.publishLocked()
}

// Set records v clamped into [0,1]. Values below the current one are ignored
// while running, and nothing changes once the pass has finished.
func (r *Reporter) Set(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(v)
}

func (r *Reporter) Advance(delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(r.snap.Value + delta)
}

func (r *Reporter) setLocked(v float64) {
	if r.snap.State != StateRunning {
		return
	}
	v = clamp(v)
	if v <= r.snap.Value {
		return
	}
	r.snap.Value = v
	r.publishLocked()
}

// Complete reports 1.0 while still running, then returns to idle at zero with
// a completed status.
func (r *Reporter) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap.State == StateRunning && r.snap.Value < 1 {
		r.snap.Value = 1
		r.publishLocked()
	}
	r.finishLocked(StatusCompleted)
}

func (r *Reporter) Fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked(StatusFailed)
}

func (r *Reporter) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishLocked(StatusCancelled)
}

// finishLocked resets to the initial idle value; the outcome lives in Status.
func (r *Reporter) finishLocked(status Status) {
	r.snap.State = StateIdle
	r.snap.Status = status
	r.snap.Value = 0
	r.publishLocked()
}

// Subscribe returns a channel receiving every change in order. Delivery never
// blocks the producer: when the buffer is full the oldest pending snapshot is
// dropped. The returned func unsubscribes and closes the channel.
func (r *Reporter) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	ch <- r.snap
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if _, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(ch)
			}
		})
	}
}

func (r *Reporter) publishLocked() {
	r.snap.Updated = r.now()
	for _, ch := range r.subs {
		deliver(ch, r.snap)
	}
}

// deliver is only called with the reporter lock held, so it is the sole
// sender on ch and the drain-then-send cannot race with another producer.
func deliver(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
