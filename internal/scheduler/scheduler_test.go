// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerFiresJob(t *testing.T) {
	var fires atomic.Int32
	sched, err := New("* * * * * *", func(ctx context.Context) {
		fires.Add(1)
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	sched.Start(context.Background())
	defer sched.Stop()

	if sched.Next().IsZero() {
		t.Error("expected a next fire time after Start")
	}

	// Wait up to 2.5 seconds for at least one fire
	deadline := time.After(2500 * time.Millisecond)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			t.Fatalf("job did not fire within 2.5s, fires=%d", fires.Load())
		case <-ticker.C:
			if fires.Load() > 0 {
				return
			}
		}
	}
}

func TestSchedulerInvalidSpec(t *testing.T) {
	if _, err := New("not a schedule", func(context.Context) {}, nil); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if err := ValidateSpec("@every 5m"); err != nil {
		t.Errorf("expected @every to be valid: %v", err)
	}
	if err := ValidateSpec("*/5 * * * *"); err != nil {
		t.Errorf("expected 5-field spec to be valid: %v", err)
	}
}

func TestSchedulerTriggerSkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var runs atomic.Int32

	sched, err := New("@every 1h", func(ctx context.Context) {
		runs.Add(1)
		started <- struct{}{}
		<-release
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !sched.Trigger() {
		t.Fatal("first trigger should start a run")
	}
	<-started
	if !sched.Running() {
		t.Error("expected Running while the job blocks")
	}
	if sched.Trigger() {
		t.Error("second trigger should be skipped while running")
	}

	close(release)
	sched.Stop()
	if sched.Running() {
		t.Error("expected no active run after Stop")
	}
	if runs.Load() != 1 {
		t.Errorf("expected 1 run, got %d", runs.Load())
	}
	if !sched.Trigger() {
		t.Error("trigger after completion should start a run")
	}
	sched.Stop()
}

func TestSchedulerPassesContext(t *testing.T) {
	type key struct{}
	got := make(chan any, 1)
	sched, err := New("@every 1h", func(ctx context.Context) {
		got <- ctx.Value(key{})
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	sched.Start(context.WithValue(context.Background(), key{}, "batch"))
	defer sched.Stop()

	sched.Trigger()
	select {
	case v := <-got:
		if v != "batch" {
			t.Errorf("expected context value, got %v", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}
