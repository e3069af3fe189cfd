package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"qrattendance/internal/queue"
)

type recordingQueue struct {
	jobs []queue.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job queue.Job) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, job)
	return "1-0", nil
}

func TestEnqueuePrune(t *testing.T) {
	q := &recordingQueue{}
	s := NewScheduler(q, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 3, 30, 0, 0, time.UTC) }

	s.enqueuePrune()

	if len(q.jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(q.jobs))
	}
	if q.jobs[0].Type != queue.TaskTokensPrune {
		t.Fatalf("unexpected job type %s", q.jobs[0].Type)
	}
	if q.jobs[0].Value("at") != "2024-03-01T03:30:00Z" {
		t.Fatalf("unexpected at %q", q.jobs[0].Value("at"))
	}
}

func TestEnqueuePruneFailureIsSwallowed(t *testing.T) {
	q := &recordingQueue{err: errors.New("redis down")}
	s := NewScheduler(q, zerolog.Nop())
	s.enqueuePrune()
	if len(q.jobs) != 0 {
		t.Fatal("no job should be recorded")
	}
}

func TestPruneSpecParses(t *testing.T) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(tokenPruneSpec); err != nil {
		t.Fatalf("parse spec: %v", err)
	}
}
