package progress

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"
)

func TestReporterLifecycle(t *testing.T) {
	r := NewReporter("run-1", "DefaultPoints")
	if s := r.Snapshot(); s.State != StateIdle || s.Value != 0 {
		t.Fatalf("expected idle at 0, got %+v", s)
	}

	r.Start()
	r.Advance(0.25)
	r.Advance(0.25)
	if got := r.Snapshot(); got.State != StateRunning || got.Value != 0.5 {
		t.Fatalf("expected running at 0.5, got %+v", got)
	}

	r.Complete()
	got := r.Snapshot()
	if got.State != StateIdle || got.Status != StatusCompleted || got.Value != 0 {
		t.Fatalf("expected idle/completed back at 0, got %+v", got)
	}
	if !got.Terminal() {
		t.Fatalf("expected terminal snapshot")
	}
}

func TestReporterClampsAndIsMonotonic(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{name: "negative", in: []float64{-0.5}, want: 0},
		{name: "above one", in: []float64{1.7}, want: 1},
		{name: "nan", in: []float64{math.NaN()}, want: 0},
		{name: "decrease ignored", in: []float64{0.6, 0.4}, want: 0.6},
		{name: "increase", in: []float64{0.2, 0.9}, want: 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReporter("r", "x")
			r.Start()
			for _, v := range tt.in {
				r.Set(v)
			}
			if got := r.Snapshot().Value; got != tt.want {
				t.Fatalf("expected %.2f, got %.2f", tt.want, got)
			}
		})
	}
}

func TestReporterIgnoresUpdatesWhenIdle(t *testing.T) {
	r := NewReporter("r", "x")
	r.Set(0.5)
	if got := r.Snapshot().Value; got != 0 {
		t.Fatalf("expected idle reporter to ignore Set, got %.2f", got)
	}
}

func TestReporterFailResetsValueAndMarksStatus(t *testing.T) {
	r := NewReporter("r", "x")
	r.Start()
	r.Set(0.3)
	r.Fail()
	got := r.Snapshot()
	if got.State != StateIdle || got.Status != StatusFailed || got.Value != 0 {
		t.Fatalf("unexpected snapshot after failure: %+v", got)
	}

	r.Start()
	if got := r.Snapshot(); got.Status != StatusNone || got.Value != 0 {
		t.Fatalf("expected restart to reset status and value, got %+v", got)
	}
}

func TestSubscribeDeliversInOrder(t *testing.T) {
	r := NewReporter("r", "x")
	ch, cancel := r.Subscribe(16)
	defer cancel()

	r.Start()
	r.Set(0.5)
	r.Complete()

	var values []float64
	for snap := range ch {
		values = append(values, snap.Value)
		if snap.Terminal() {
			break
		}
	}
	want := []float64{0, 0, 0.5, 1, 0}
	if len(values) != len(want) {
		t.Fatalf("expected %v, got %v", want, values)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, values)
		}
	}
}

func TestSlowSubscriberNeverBlocksProducer(t *testing.T) {
	r := NewReporter("r", "x")
	ch, cancel := r.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Start()
		for i := 1; i <= 1000; i++ {
			r.Set(float64(i) / 1000)
		}
		r.Complete()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("producer blocked on a subscriber that never reads")
	}

	last := <-ch
	if !last.Terminal() || last.Status != StatusCompleted || last.Value != 0 {
		t.Fatalf("expected the newest snapshot to survive, got %+v", last)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	r := NewReporter("r", "x")
	ch, cancel := r.Subscribe(4)
	cancel()
	cancel()

	for range ch {
	}
	r.Start()
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (s *recordingSink) Publish(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func TestForwardStopsAtTerminalSnapshot(t *testing.T) {
	r := NewReporter("run-9", "Mine")
	sink := &recordingSink{}

	finished := make(chan struct{})
	go func() {
		Forward(context.Background(), r, sink, nil)
		close(finished)
	}()

	// Forward subscribes asynchronously; wait until its initial snapshot lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.snaps)
		sink.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("forwarder never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.Start()
	r.Set(0.5)
	r.Cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("forwarder did not stop after terminal snapshot")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	last := sink.snaps[len(sink.snaps)-1]
	if last.Status != StatusCancelled || last.RunID != "run-9" {
		t.Fatalf("unexpected last snapshot: %+v", last)
	}
}

func TestStreamKey(t *testing.T) {
	if got := StreamKey("DefaultPoints"); got != "recompute.progress.DefaultPoints" {
		t.Fatalf("unexpected key %q", got)
	}
}
