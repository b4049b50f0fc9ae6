package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"vibetravels/internal/logger"
	"vibetravels/internal/repository/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const attemptColumns = `
	id, user_id, travel_plan_id, status, COALESCE(model_used, ''), tokens_used,
	cost_estimate, COALESCE(error_message, ''), started_at, completed_at, created_at`

// inFlightIndex is the partial unique index enforcing at most one
// pending/processing attempt per (user, plan)
const inFlightIndex = "generation_attempts_in_flight_idx"

func scanAttempt(row interface{ Scan(...any) error }) (*db.GenerationAttempt, error) {
	var a db.GenerationAttempt
	err := row.Scan(&a.ID, &a.UserID, &a.TravelPlanID, &a.Status, &a.ModelUsed,
		&a.TokensUsed, &a.CostEstimate, &a.ErrorMessage, &a.StartedAt, &a.CompletedAt, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAttempt retrieves a generation attempt by id
func (p *PostgresDB) GetAttempt(id string) (*db.GenerationAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM generation_attempts WHERE id = $1`

	attempt, err := scanAttempt(p.conn.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving attempt: %w", err)
	}
	return attempt, nil
}

// GetLatestAttemptForPlan retrieves the most recent attempt for a plan
func (p *PostgresDB) GetLatestAttemptForPlan(planID string) (*db.GenerationAttempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM generation_attempts
	WHERE travel_plan_id = $1
	ORDER BY created_at DESC
	LIMIT 1`

	attempt, err := scanAttempt(p.conn.QueryRow(query, planID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving latest attempt: %w", err)
	}
	return attempt, nil
}

// CountAttempts counts a user's attempts created in [from, to), any status
func (p *PostgresDB) CountAttempts(userID string, from, to time.Time) (int, error) {
	var count int
	query := `
	SELECT COUNT(*) FROM generation_attempts
	WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`

	if err := p.conn.QueryRow(query, userID, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting attempts: %w", err)
	}
	return count, nil
}

// CountAttemptsPerUser counts attempts created in [from, to) grouped by user
func (p *PostgresDB) CountAttemptsPerUser(from, to time.Time) (map[string]int, error) {
	query := `
	SELECT user_id, COUNT(*) FROM generation_attempts
	WHERE created_at >= $1 AND created_at < $2
	GROUP BY user_id
	`

	rows, err := p.conn.Query(query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error counting attempts per user: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var userID string
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, fmt.Errorf("error scanning attempt count: %w", err)
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

// ReserveAttempt atomically checks the monthly quota and inserts a pending
// attempt. An advisory transaction lock keyed on the user serializes
// concurrent limit checks; the partial unique index rejects a second in-flight
// attempt for the same plan.
func (p *PostgresDB) ReserveAttempt(userID, planID string, limit int, from, to time.Time) (*db.GenerationAttempt, error) {
	tx, err := p.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return nil, fmt.Errorf("error acquiring user lock: %w", err)
	}

	var count int
	countQuery := `
	SELECT COUNT(*) FROM generation_attempts
	WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`
	if err := tx.QueryRow(countQuery, userID, from, to).Scan(&count); err != nil {
		return nil, fmt.Errorf("error counting attempts: %w", err)
	}

	if count >= limit {
		return nil, db.ErrMonthlyLimitReached
	}

	attemptID := uuid.New().String()
	insertQuery := `
	INSERT INTO generation_attempts (id, user_id, travel_plan_id, status)
	VALUES ($1, $2, $3, 'pending')
	RETURNING created_at
	`

	var createdAt time.Time
	if err := tx.QueryRow(insertQuery, attemptID, userID, planID).Scan(&createdAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" && pqErr.Constraint == inFlightIndex {
			return nil, db.ErrAttemptInFlight
		}
		return nil, fmt.Errorf("error inserting attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing reservation: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"attempt_id": attemptID,
		"user_id":    userID,
		"plan_id":    planID,
		"used":       count + 1,
		"limit":      limit,
	}).Info("Reserved generation slot")

	return &db.GenerationAttempt{
		ID:           attemptID,
		UserID:       userID,
		TravelPlanID: planID,
		Status:       db.AttemptPending,
		CreatedAt:    createdAt,
	}, nil
}

// DeletePendingAttempt removes a reserved attempt that never started
// processing. Used to roll back a slot when enqueueing fails.
func (p *PostgresDB) DeletePendingAttempt(id string) error {
	result, err := p.conn.Exec(
		`DELETE FROM generation_attempts WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("error deleting pending attempt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted rows: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}

	logger.Log.WithField("attempt_id", id).Info("Rolled back pending attempt")
	return nil
}

// MarkAttemptProcessing transitions an attempt to processing. Safe to call
// again on a queue retry: an attempt already processing keeps its started_at.
func (p *PostgresDB) MarkAttemptProcessing(id string, startedAt time.Time) error {
	query := `
	UPDATE generation_attempts
	SET status = 'processing', started_at = COALESCE(started_at, $2)
	WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := p.conn.Exec(query, id, startedAt)
	if err != nil {
		return fmt.Errorf("error marking attempt processing: %w", err)
	}
	return requireAffected(result, id)
}

// MarkAttemptCompleted sets the terminal completed state with call metrics
func (p *PostgresDB) MarkAttemptCompleted(id, model string, tokensUsed int, cost float64, completedAt time.Time) error {
	query := `
	UPDATE generation_attempts
	SET status = 'completed', model_used = $2, tokens_used = $3, cost_estimate = $4, completed_at = $5
	WHERE id = $1 AND status = 'processing'
	`

	result, err := p.conn.Exec(query, id, model, tokensUsed, cost, completedAt)
	if err != nil {
		return fmt.Errorf("error marking attempt completed: %w", err)
	}
	return requireAffected(result, id)
}

// MarkAttemptFailed sets the terminal failed state with the error message
func (p *PostgresDB) MarkAttemptFailed(id, errorMessage string, completedAt time.Time) error {
	query := `
	UPDATE generation_attempts
	SET status = 'failed', error_message = $2, completed_at = $3
	WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := p.conn.Exec(query, id, errorMessage, completedAt)
	if err != nil {
		return fmt.Errorf("error marking attempt failed: %w", err)
	}
	return requireAffected(result, id)
}

// FindStuckAttempts lists non-terminal attempts created before the cutoff
func (p *PostgresDB) FindStuckAttempts(olderThan time.Time) ([]db.GenerationAttempt, error) {
	query := `SELECT ` + attemptColumns + `
	FROM generation_attempts
	WHERE status IN ('pending', 'processing') AND created_at < $1
	ORDER BY created_at
	`

	rows, err := p.conn.Query(query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("error querying stuck attempts: %w", err)
	}
	defer rows.Close()

	var attempts []db.GenerationAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning stuck attempt: %w", err)
		}
		attempts = append(attempts, *attempt)
	}
	return attempts, rows.Err()
}

// FailStuckAttempts force-fails every non-terminal attempt created before the
// cutoff, in one statement so a concurrent worker completion cannot be
// overwritten
func (p *PostgresDB) FailStuckAttempts(olderThan time.Time, errorMessage string, failedAt time.Time) (int, error) {
	query := `
	UPDATE generation_attempts
	SET status = 'failed', error_message = $2, completed_at = $3
	WHERE status IN ('pending', 'processing') AND created_at < $1
	`

	result, err := p.conn.Exec(query, olderThan, errorMessage, failedAt)
	if err != nil {
		return 0, fmt.Errorf("error failing stuck attempts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking reaped rows: %w", err)
	}
	return int(affected), nil
}

func requireAffected(result sql.Result, attemptID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking updated rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("attempt %s not in an updatable state: %w", attemptID, db.ErrNotFound)
	}
	return nil
}
