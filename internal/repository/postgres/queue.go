package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"vibetravels/internal/logger"
	"vibetravels/internal/repository/db"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EnqueueJob appends a job to the generation queue
func (p *PostgresDB) EnqueueJob(attemptID string, payload []byte, maxAttempts int) (*db.QueuedJob, error) {
	jobID := uuid.New().String()

	query := `
	INSERT INTO generation_jobs (id, attempt_id, payload, status, max_attempts)
	VALUES ($1, $2, $3, 'queued', $4)
	RETURNING created_at, updated_at
	`

	job := &db.QueuedJob{
		ID:          jobID,
		AttemptID:   attemptID,
		Payload:     payload,
		Status:      db.JobQueued,
		MaxAttempts: maxAttempts,
	}
	err := p.conn.QueryRow(query, jobID, attemptID, payload, maxAttempts).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error enqueueing job: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"job_id": jobID, "attempt_id": attemptID}).Info("Enqueued generation job")
	return job, nil
}

// DequeueJob claims the oldest queued job, if any. SKIP LOCKED lets multiple
// workers poll the same table without serializing on each other; the claimed
// row moves to running with attempts incremented before the transaction
// commits, so a job is never handed to two workers.
func (p *PostgresDB) DequeueJob(now time.Time) (*db.QueuedJob, error) {
	tx, err := p.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
	SELECT id, attempt_id, payload, attempts, max_attempts, created_at
	FROM generation_jobs
	WHERE status = 'queued'
	ORDER BY created_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
	`

	var job db.QueuedJob
	err = tx.QueryRow(query).Scan(&job.ID, &job.AttemptID, &job.Payload,
		&job.Attempts, &job.MaxAttempts, &job.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error claiming job: %w", err)
	}

	claim := `
	UPDATE generation_jobs
	SET status = 'running', attempts = attempts + 1, locked_at = $2, updated_at = NOW()
	WHERE id = $1
	`
	if _, err := tx.Exec(claim, job.ID, now); err != nil {
		return nil, fmt.Errorf("error marking job running: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing claim: %w", err)
	}

	job.Status = db.JobRunning
	job.Attempts++
	job.LockedAt = &now
	return &job, nil
}

// CompleteJob marks a job done
func (p *PostgresDB) CompleteJob(id string) error {
	result, err := p.conn.Exec(`
	UPDATE generation_jobs
	SET status = 'done', updated_at = NOW()
	WHERE id = $1 AND status = 'running'
	`, id)
	if err != nil {
		return fmt.Errorf("error completing job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking completed rows: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// FailJob records a failed execution. The job returns to the queue while
// tries remain, otherwise it is marked dead. Returns whether it was requeued.
func (p *PostgresDB) FailJob(id, errorMessage string) (bool, error) {
	query := `
	UPDATE generation_jobs
	SET status = CASE WHEN attempts >= max_attempts THEN 'dead' ELSE 'queued' END,
	    locked_at = NULL, last_error = $2, updated_at = NOW()
	WHERE id = $1 AND status = 'running'
	RETURNING status
	`

	var status string
	err := p.conn.QueryRow(query, id, errorMessage).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, db.ErrNotFound
		}
		return false, fmt.Errorf("error failing job: %w", err)
	}

	requeued := status == db.JobQueued
	logger.Log.WithFields(logrus.Fields{
		"job_id":   id,
		"requeued": requeued,
		"error":    errorMessage,
	}).Warn("Generation job failed")

	return requeued, nil
}
