package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vibetravels/internal/config"
	"vibetravels/internal/logger"
	"vibetravels/internal/repository/db"
	"vibetravels/internal/service/generation"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pool runs N workers pulling generation jobs from the durable queue. Each
// job executes synchronously on one worker under the configured job timeout;
// concurrency control lives in the queue's SKIP LOCKED claim.
type Pool struct {
	db           db.Database
	service      *generation.GenerationService
	count        int
	pollInterval time.Duration
	jobTimeout   time.Duration
	now          func() time.Time
}

// NewPool creates a worker pool from the worker configuration
func NewPool(database db.Database, service *generation.GenerationService, workerConfig config.WorkerConfig) *Pool {
	return &Pool{
		db:           database,
		service:      service,
		count:        workerConfig.Count,
		pollInterval: workerConfig.PollInterval,
		jobTimeout:   workerConfig.JobTimeout,
		now:          time.Now,
	}
}

// Run starts the workers and blocks until the context is cancelled
func (p *Pool) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for i := 0; i < p.count; i++ {
		workerID := i + 1
		group.Go(func() error {
			return p.runWorker(groupCtx, workerID)
		})
	}

	logger.Log.WithField("workers", p.count).Info("Worker pool started")
	return group.Wait()
}

func (p *Pool) runWorker(ctx context.Context, workerID int) error {
	log := logger.Log.WithField("worker", workerID)

	for {
		select {
		case <-ctx.Done():
			log.Info("Worker stopping")
			return ctx.Err()
		default:
		}

		job, err := p.db.DequeueJob(p.now())
		if err != nil {
			log.WithField("error", err.Error()).Error("Failed to poll queue")
			p.sleep(ctx, p.pollInterval)
			continue
		}
		if job == nil {
			p.sleep(ctx, p.pollInterval)
			continue
		}

		p.process(ctx, job, log)
	}
}

func (p *Pool) process(ctx context.Context, job *db.QueuedJob, log *logrus.Entry) {
	log = log.WithFields(logrus.Fields{"job_id": job.ID, "attempt_id": job.AttemptID, "try": job.Attempts})
	log.Info("Picked up generation job")

	var payload generation.JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.finishFailed(job, fmt.Sprintf("malformed job payload: %v", err), log)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	if err := p.service.ExecuteAttempt(jobCtx, payload); err != nil {
		p.finishFailed(job, err.Error(), log)
		return
	}

	if err := p.db.CompleteJob(job.ID); err != nil {
		log.WithField("error", err.Error()).Error("Failed to mark job done")
		return
	}
	log.Info("Generation job done")
}

// finishFailed hands the error to the queue's retry policy. The attempt
// transitions to its terminal failed state only once the job is dead.
func (p *Pool) finishFailed(job *db.QueuedJob, errorMessage string, log *logrus.Entry) {
	requeued, err := p.db.FailJob(job.ID, errorMessage)
	if err != nil {
		log.WithField("error", err.Error()).Error("Failed to record job failure")
		return
	}
	if requeued {
		log.Warn("Job requeued for retry")
		return
	}

	if err := p.service.FailAttempt(job.AttemptID, errorMessage); err != nil {
		log.WithField("error", err.Error()).Error("Failed to mark attempt failed")
		return
	}
	log.Warn("Job dead, attempt marked failed")
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
