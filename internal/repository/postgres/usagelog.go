package postgres

import (
	"fmt"
	"time"

	"vibetravels/internal/repository/db"

	"github.com/google/uuid"
)

// AddUsageLog records one language-model call for cost accounting
func (p *PostgresDB) AddUsageLog(entry *db.UsageLog) (*db.UsageLog, error) {
	logID := uuid.New().String()

	query := `
	INSERT INTO usage_logs (id, user_id, attempt_id, request_type, model,
		prompt_tokens, completion_tokens, total_tokens, cost, error_message)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at
	`

	saved := *entry
	saved.ID = logID
	err := p.conn.QueryRow(query, logID, entry.UserID, entry.AttemptID,
		entry.RequestType, entry.Model, entry.PromptTokens, entry.CompletionTokens,
		entry.TotalTokens, entry.Cost, entry.ErrorMessage).Scan(&saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error writing usage log: %w", err)
	}

	return &saved, nil
}

// SumUsageCost totals a user's recorded cost in [from, to). Not part of the
// db.Database interface; exposed for reporting queries against the pool.
func (p *PostgresDB) SumUsageCost(userID string, from, to time.Time) (float64, error) {
	var total float64
	query := `
	SELECT COALESCE(SUM(cost), 0) FROM usage_logs
	WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`

	if err := p.conn.QueryRow(query, userID, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("error summing usage cost: %w", err)
	}
	return total, nil
}
