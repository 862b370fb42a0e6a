package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/pkg/database"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/pagination"
)

const habitColumns = `id, user_id, title, description, number_of_repeats, execution_frequency, start_date, end_date, created_at, updated_at`

// HabitRepository implements repository.HabitRepository using PostgreSQL.
type HabitRepository struct {
	db database.DBTX
}

// NewHabitRepository creates a new PostgreSQL-backed habit repository.
func NewHabitRepository(db database.DBTX) *HabitRepository {
	return &HabitRepository{db: db}
}

// Create inserts a new habit.
func (r *HabitRepository) Create(ctx context.Context, h *domain.Habit) error {
	query := `
		INSERT INTO habits (` + habitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		h.ID,
		h.UserID,
		h.Title,
		h.Description,
		h.NumberOfRepeats,
		h.ExecutionFrequency,
		h.StartDate,
		h.EndDate,
		h.CreatedAt,
		h.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("user", h.UserID.String())
		}
		return fmt.Errorf("insert habit: %w", err)
	}

	return nil
}

// GetByID retrieves a habit owned by userID.
func (r *HabitRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1 AND user_id = $2`

	h, err := scanHabit(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan habit: %w", err)
	}

	return h, nil
}

// ListByUser returns a page of the user's habits, newest first, and the total count.
func (r *HabitRepository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]domain.Habit, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM habits WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count habits: %w", err)
	}

	query := `
		SELECT ` + habitColumns + `
		FROM habits
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, params.PerPage, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []domain.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan habit row: %w", err)
		}
		habits = append(habits, *h)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate habit rows: %w", err)
	}

	if habits == nil {
		habits = []domain.Habit{}
	}

	return habits, total, nil
}

// Update modifies an existing habit owned by h.UserID.
func (r *HabitRepository) Update(ctx context.Context, h *domain.Habit) error {
	h.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE habits
		SET title = $1, description = $2, number_of_repeats = $3, execution_frequency = $4,
		    start_date = $5, end_date = $6, updated_at = $7
		WHERE id = $8 AND user_id = $9`

	ct, err := r.db.Exec(ctx, query,
		h.Title,
		h.Description,
		h.NumberOfRepeats,
		h.ExecutionFrequency,
		h.StartDate,
		h.EndDate,
		h.UpdatedAt,
		h.ID,
		h.UserID,
	)
	if err != nil {
		return fmt.Errorf("update habit: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("habit", h.ID.String())
	}

	return nil
}

// Delete removes a habit owned by userID together with its trackings.
func (r *HabitRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("habit", id.String())
	}

	return nil
}

func scanHabit(row pgx.Row) (*domain.Habit, error) {
	var h domain.Habit
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&h.Title,
		&h.Description,
		&h.NumberOfRepeats,
		&h.ExecutionFrequency,
		&h.StartDate,
		&h.EndDate,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// TrackingRepository implements repository.TrackingRepository using PostgreSQL.
type TrackingRepository struct {
	db database.DBTX
}

// NewTrackingRepository creates a new PostgreSQL-backed tracking repository.
func NewTrackingRepository(db database.DBTX) *TrackingRepository {
	return &TrackingRepository{db: db}
}

// Create inserts a tracking record for an existing habit.
func (r *TrackingRepository) Create(ctx context.Context, t *domain.Tracking) error {
	query := `
		INSERT INTO trackings (id, habit_id, amount_of_days, done_date, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, t.ID, t.HabitID, t.AmountOfDays, t.DoneDate, t.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("habit", t.HabitID.String())
		}
		return fmt.Errorf("insert tracking: %w", err)
	}

	return nil
}

// ListByHabit returns the trackings of a habit ordered by done date.
func (r *TrackingRepository) ListByHabit(ctx context.Context, habitID uuid.UUID) ([]domain.Tracking, error) {
	query := `
		SELECT id, habit_id, amount_of_days, done_date, created_at
		FROM trackings
		WHERE habit_id = $1
		ORDER BY done_date, created_at`

	rows, err := r.db.Query(ctx, query, habitID)
	if err != nil {
		return nil, fmt.Errorf("list trackings: %w", err)
	}
	defer rows.Close()

	var trackings []domain.Tracking
	for rows.Next() {
		var t domain.Tracking
		if err := rows.Scan(&t.ID, &t.HabitID, &t.AmountOfDays, &t.DoneDate, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracking row: %w", err)
		}
		trackings = append(trackings, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking rows: %w", err)
	}

	if trackings == nil {
		trackings = []domain.Tracking{}
	}

	return trackings, nil
}
