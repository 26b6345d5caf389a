package manager

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEnqueue_Wait_Completes(t *testing.T) {
	m := New(Config{MaxConcurrency: 2}, func(ctx context.Context, job *Job) error {
		return nil
	})
	job, err := m.Enqueue(context.Background(), "kafka", "3.5.0", "https://kafka.example.com", nil, true)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status())
	}
	if job.StartedAt() == nil || job.FinishedAt() == nil {
		t.Fatal("expected started/finished timestamps set")
	}
}

func TestEnqueue_Failure(t *testing.T) {
	boom := errors.New("boom")
	m := New(Config{MaxConcurrency: 1}, func(ctx context.Context, job *Job) error {
		return boom
	})
	job, _ := m.Enqueue(context.Background(), "lib", "", "https://x", nil, true)
	if job.Status() != StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status())
	}
	if job.Err() == nil {
		t.Fatal("expected error recorded")
	}
}

func TestCancelJob_MidRun(t *testing.T) {
	started := make(chan struct{})
	m := New(Config{MaxConcurrency: 1}, func(ctx context.Context, job *Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	job, err := m.Enqueue(context.Background(), "lib", "", "https://x", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	<-started

	ok, _, err := m.CancelJob(job.ID)
	if err != nil || !ok {
		t.Fatalf("CancelJob: ok=%v err=%v", ok, err)
	}
	<-job.Done()
	if job.Status() != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", job.Status())
	}
}

func TestCancelJob_IdempotentOnTerminal(t *testing.T) {
	m := New(Config{MaxConcurrency: 1}, func(ctx context.Context, job *Job) error { return nil })
	job, _ := m.Enqueue(context.Background(), "lib", "", "https://x", nil, true)

	ok1, msg1, err1 := m.CancelJob(job.ID)
	ok2, msg2, err2 := m.CancelJob(job.ID)
	if err1 != nil || err2 != nil {
		t.Fatalf("errors: %v, %v", err1, err2)
	}
	if ok1 != false || ok2 != false {
		t.Fatalf("expected success=false on a completed job, got %v, %v", ok1, ok2)
	}
	if msg1 != msg2 {
		t.Errorf("expected idempotent message, got %q vs %q", msg1, msg2)
	}
}

func TestCancelJob_NotFound(t *testing.T) {
	m := New(Config{MaxConcurrency: 1}, func(ctx context.Context, job *Job) error { return nil })
	_, _, err := m.CancelJob("missing")
	if err == nil {
		t.Fatal("expected JobNotFound error")
	}
}

func TestListJobs_SortedByCreatedAt(t *testing.T) {
	release := make(chan struct{})
	m := New(Config{MaxConcurrency: 1}, func(ctx context.Context, job *Job) error {
		<-release
		return nil
	})
	var ids []string
	for i := 0; i < 3; i++ {
		job, _ := m.Enqueue(context.Background(), "lib", "", "https://x", nil, false)
		ids = append(ids, job.ID)
		time.Sleep(time.Millisecond)
	}
	close(release)
	for _, id := range ids {
		m.WaitForJob(context.Background(), id)
	}

	jobs := m.ListJobs(nil)
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i].CreatedAt.Before(jobs[i-1].CreatedAt) {
			t.Fatal("jobs not sorted by created_at")
		}
	}
}

func TestClearCompleted(t *testing.T) {
	m := New(Config{MaxConcurrency: 1}, func(ctx context.Context, job *Job) error { return nil })
	job, _ := m.Enqueue(context.Background(), "lib", "", "https://x", nil, true)
	_ = job

	n := m.ClearCompleted()
	if n != 1 {
		t.Fatalf("ClearCompleted: got %d, want 1", n)
	}
	if m.GetJob(job.ID) != nil {
		t.Fatal("expected job record removed")
	}
}

func TestFindByLibVersion(t *testing.T) {
	m := New(Config{MaxConcurrency: 1}, func(ctx context.Context, job *Job) error { return nil })
	m.Enqueue(context.Background(), "kafka", "3.5.0", "https://a", nil, true)
	m.Enqueue(context.Background(), "kafka", "4.0.0", "https://b", nil, true)

	found := m.FindByLibVersion("kafka", "3.5.0", nil)
	if len(found) != 1 {
		t.Fatalf("expected 1 job for kafka 3.5.0, got %d", len(found))
	}
}
