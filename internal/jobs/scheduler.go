package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"qrattendance/internal/queue"
)

const tokenPruneSpec = "0 30 3 * * *"

type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) (string, error)
}

// Scheduler enqueues periodic maintenance jobs for the worker.
type Scheduler struct {
	cron  *cron.Cron
	queue Enqueuer
	log   zerolog.Logger
	now   func() time.Time
}

func NewScheduler(q Enqueuer, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		queue: q,
		log:   log,
		now:   time.Now,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(tokenPruneSpec, s.enqueuePrune); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs up to five seconds.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueuePrune() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := s.queue.Enqueue(ctx, queue.TokensPruneJob(s.now()))
	if err != nil {
		s.log.Error().Err(err).Msg("enqueue token prune failed")
		return
	}
	s.log.Info().Str("message_id", id).Msg("token prune queued")
}
