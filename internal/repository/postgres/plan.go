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

// CreateTravelPlan creates a new travel plan in draft status
func (p *PostgresDB) CreateTravelPlan(plan *db.TravelPlan) (*db.TravelPlan, error) {
	planID := uuid.New().String()

	query := `
	INSERT INTO travel_plans (id, user_id, title, destination, start_date, end_date, traveler_count, budget, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'draft')
	RETURNING id, status, created_at, updated_at
	`

	created := *plan
	err := p.conn.QueryRow(query, planID, plan.UserID, plan.Title, plan.Destination,
		plan.StartDate, plan.EndDate, plan.TravelerCount, plan.Budget).
		Scan(&created.ID, &created.Status, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating travel plan: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"plan_id":     created.ID,
		"user_id":     plan.UserID,
		"destination": plan.Destination,
	}).Info("Created travel plan")

	return &created, nil
}

// GetTravelPlan retrieves a travel plan, with has_ai_plan derived from
// whether any itinerary days exist
func (p *PostgresDB) GetTravelPlan(id string) (*db.TravelPlan, error) {
	var plan db.TravelPlan
	query := `
	SELECT p.id, p.user_id, p.title, p.destination, p.start_date, p.end_date,
	       p.traveler_count, p.budget, p.status,
	       EXISTS (SELECT 1 FROM plan_days d WHERE d.travel_plan_id = p.id),
	       p.created_at, p.updated_at
	FROM travel_plans p
	WHERE p.id = $1
	`

	err := p.conn.QueryRow(query, id).Scan(&plan.ID, &plan.UserID, &plan.Title,
		&plan.Destination, &plan.StartDate, &plan.EndDate, &plan.TravelerCount,
		&plan.Budget, &plan.Status, &plan.HasAIPlan, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving travel plan: %w", err)
	}

	return &plan, nil
}

// UpdateTravelPlanStatus sets a plan's status
func (p *PostgresDB) UpdateTravelPlanStatus(id, status string) error {
	result, err := p.conn.Exec(
		`UPDATE travel_plans SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("error updating plan status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking updated rows: %w", err)
	}
	if affected == 0 {
		return db.ErrNotFound
	}
	return nil
}

// CompletePastPlans moves planned trips whose end date has passed to completed
func (p *PostgresDB) CompletePastPlans(now time.Time) (int, error) {
	result, err := p.conn.Exec(`
	UPDATE travel_plans
	SET status = 'completed', updated_at = NOW()
	WHERE status = 'planned' AND end_date < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("error completing past plans: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking completed rows: %w", err)
	}
	return int(affected), nil
}

// GetUserPreference retrieves a user's travel profile
func (p *PostgresDB) GetUserPreference(userID string) (*db.UserPreference, error) {
	var pref db.UserPreference
	var interests pq.StringArray
	query := `
	SELECT user_id, interests, pace, budget_level, transport,
	       COALESCE(dietary, ''), COALESCE(accessibility, ''), updated_at
	FROM user_preferences
	WHERE user_id = $1
	`

	err := p.conn.QueryRow(query, userID).Scan(&pref.UserID, &interests, &pref.Pace,
		&pref.BudgetLevel, &pref.Transport, &pref.Dietary, &pref.Accessibility, &pref.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, db.ErrNotFound
		}
		return nil, fmt.Errorf("error retrieving preferences: %w", err)
	}

	pref.Interests = interests
	return &pref, nil
}

// UpsertUserPreference creates or replaces a user's travel profile
func (p *PostgresDB) UpsertUserPreference(pref *db.UserPreference) (*db.UserPreference, error) {
	query := `
	INSERT INTO user_preferences (user_id, interests, pace, budget_level, transport, dietary, accessibility)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id) DO UPDATE SET
		interests = EXCLUDED.interests,
		pace = EXCLUDED.pace,
		budget_level = EXCLUDED.budget_level,
		transport = EXCLUDED.transport,
		dietary = EXCLUDED.dietary,
		accessibility = EXCLUDED.accessibility,
		updated_at = NOW()
	RETURNING updated_at
	`

	saved := *pref
	err := p.conn.QueryRow(query, pref.UserID, pq.Array(pref.Interests), pref.Pace,
		pref.BudgetLevel, pref.Transport, pref.Dietary, pref.Accessibility).Scan(&saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error saving preferences: %w", err)
	}

	logger.Log.WithField("user_id", pref.UserID).Info("Saved user preferences")
	return &saved, nil
}

// ReplaceItinerary transactionally replaces a plan's itinerary. Existing days
// and points are deleted before the insert so a queue retry that reaches
// persistence twice leaves a single copy.
func (p *PostgresDB) ReplaceItinerary(planID string, days []db.PlanDay) error {
	tx, err := p.conn.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM plan_days WHERE travel_plan_id = $1`, planID); err != nil {
		return fmt.Errorf("error clearing previous itinerary: %w", err)
	}

	dayQuery := `
	INSERT INTO plan_days (id, travel_plan_id, day_number, date, summary, daily_budget)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	pointQuery := `
	INSERT INTO plan_points (id, plan_day_id, order_number, day_part, name, description, duration_minutes, location, cost_estimate, category)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, day := range days {
		dayID := uuid.New().String()
		if _, err := tx.Exec(dayQuery, dayID, planID, day.DayNumber, day.Date, day.Summary, day.DailyBudget); err != nil {
			return fmt.Errorf("error inserting plan day %d: %w", day.DayNumber, err)
		}

		for _, point := range day.Points {
			pointID := uuid.New().String()
			if _, err := tx.Exec(pointQuery, pointID, dayID, point.OrderNumber, point.DayPart,
				point.Name, point.Description, point.DurationMinutes, point.Location,
				point.CostEstimate, point.Category); err != nil {
				return fmt.Errorf("error inserting plan point %q: %w", point.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing itinerary: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"plan_id": planID, "days": len(days)}).Info("Stored itinerary")
	return nil
}
