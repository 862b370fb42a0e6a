package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/HabitGo/internal/domain"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/pagination"
)

var habitRowColumns = []string{
	"id", "user_id", "title", "description", "number_of_repeats",
	"execution_frequency", "start_date", "end_date", "created_at", "updated_at",
}

func sampleHabit() *domain.Habit {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Habit{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		Title:              "Read",
		Description:        "20 pages",
		NumberOfRepeats:    1,
		ExecutionFrequency: domain.FrequencyDay,
		StartDate:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func habitRows(habits ...*domain.Habit) *pgxmock.Rows {
	rows := pgxmock.NewRows(habitRowColumns)
	for _, h := range habits {
		rows.AddRow(h.ID, h.UserID, h.Title, h.Description, h.NumberOfRepeats,
			h.ExecutionFrequency, h.StartDate, h.EndDate, h.CreatedAt, h.UpdatedAt)
	}
	return rows
}

func TestHabitRepository_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewHabitRepository(mock)
	h := sampleHabit()

	mock.ExpectExec("INSERT INTO habits").
		WithArgs(h.ID, h.UserID, h.Title, h.Description, h.NumberOfRepeats,
			h.ExecutionFrequency, h.StartDate, h.EndDate, h.CreatedAt, h.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), h))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHabitRepository_GetByID_ScopedToOwner(t *testing.T) {
	mock := newMockPool(t)
	repo := NewHabitRepository(mock)
	h := sampleHabit()

	mock.ExpectQuery("SELECT .+ FROM habits WHERE id = \\$1 AND user_id = \\$2").
		WithArgs(h.ID, h.UserID).
		WillReturnRows(habitRows(h))

	got, err := repo.GetByID(context.Background(), h.UserID, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.Title, got.Title)
	assert.Equal(t, h.EndDate, got.EndDate)

	other := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM habits").
		WithArgs(h.ID, other).
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetByID(context.Background(), other, h.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHabitRepository_ListByUser(t *testing.T) {
	mock := newMockPool(t)
	repo := NewHabitRepository(mock)
	h1, h2 := sampleHabit(), sampleHabit()
	h2.UserID = h1.UserID

	params := pagination.Params{Page: 2, PerPage: 2}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(h1.UserID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery("SELECT .+ FROM habits").
		WithArgs(h1.UserID, 2, 2).
		WillReturnRows(habitRows(h1, h2))

	habits, total, err := repo.ListByUser(context.Background(), h1.UserID, params)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, habits, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHabitRepository_ListByUser_Empty(t *testing.T) {
	mock := newMockPool(t)
	repo := NewHabitRepository(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT .+ FROM habits").WillReturnRows(habitRows())

	habits, total, err := repo.ListByUser(context.Background(), userID, pagination.Params{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, habits)
	assert.Empty(t, habits)
}

func TestHabitRepository_UpdateAndDelete_NotOwned(t *testing.T) {
	mock := newMockPool(t)
	repo := NewHabitRepository(mock)
	h := sampleHabit()

	mock.ExpectExec("UPDATE habits").
		WithArgs(h.Title, h.Description, h.NumberOfRepeats, h.ExecutionFrequency,
			h.StartDate, h.EndDate, pgxmock.AnyArg(), h.ID, h.UserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("DELETE FROM habits").
		WithArgs(h.ID, h.UserID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.True(t, errors.Is(repo.Update(context.Background(), h), apperrors.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(context.Background(), h.UserID, h.ID), apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingRepository_CreateAndList(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTrackingRepository(mock)

	tr := &domain.Tracking{
		ID:           uuid.New(),
		HabitID:      uuid.New(),
		AmountOfDays: 3,
		DoneDate:     time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectExec("INSERT INTO trackings").
		WithArgs(tr.ID, tr.HabitID, tr.AmountOfDays, tr.DoneDate, tr.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT .+ FROM trackings WHERE habit_id =").
		WithArgs(tr.HabitID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "habit_id", "amount_of_days", "done_date", "created_at"}).
			AddRow(tr.ID, tr.HabitID, tr.AmountOfDays, tr.DoneDate, tr.CreatedAt))

	require.NoError(t, repo.Create(context.Background(), tr))

	list, err := repo.ListByHabit(context.Background(), tr.HabitID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].AmountOfDays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingRepository_Create_MissingHabit(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTrackingRepository(mock)

	mock.ExpectExec("INSERT INTO trackings").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})

	err := repo.Create(context.Background(), &domain.Tracking{ID: uuid.New(), HabitID: uuid.New()})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
