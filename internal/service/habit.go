package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/internal/repository"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/pagination"
)

// HabitService implements habits and their trackings. Every operation is
// scoped to the owning user; another user's habit is reported as missing.
type HabitService struct {
	habits    repository.HabitRepository
	trackings repository.TrackingRepository
	logger    *slog.Logger
}

// NewHabitService creates a new habit service.
func NewHabitService(habits repository.HabitRepository, trackings repository.TrackingRepository, logger *slog.Logger) *HabitService {
	return &HabitService{
		habits:    habits,
		trackings: trackings,
		logger:    logger,
	}
}

// HabitInput holds every field of a habit. Updates replace all of them.
type HabitInput struct {
	Title              string
	Description        string
	NumberOfRepeats    int
	ExecutionFrequency string
	StartDate          time.Time
	EndDate            time.Time
}

// TrackingInput holds the parameters for recording a tracking.
type TrackingInput struct {
	HabitID      uuid.UUID
	AmountOfDays int
	DoneDate     time.Time
}

// List returns a page of the user's habits, newest first.
func (s *HabitService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Result[domain.Habit], error) {
	habits, total, err := s.habits.ListByUser(ctx, userID, params)
	if err != nil {
		return pagination.Result[domain.Habit]{}, fmt.Errorf("list habits: %w", err)
	}
	return pagination.NewResult(habits, total, params), nil
}

// Create adds a habit for the user.
func (s *HabitService) Create(ctx context.Context, userID uuid.UUID, input HabitInput) (*domain.Habit, error) {
	if err := checkHabit(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	h := &domain.Habit{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
	}
	applyHabit(h, input, now)

	if err := s.habits.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}

	s.logger.InfoContext(ctx, "habit created",
		slog.String("habit_id", h.ID.String()),
		slog.String("user_id", userID.String()),
	)
	return h, nil
}

// Get returns one of the user's habits.
func (s *HabitService) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Habit, error) {
	h, err := s.habits.GetByID(ctx, userID, id)
	if err != nil {
		return nil, habitErr(err, "get habit")
	}
	return h, nil
}

// Update replaces every field of one of the user's habits.
func (s *HabitService) Update(ctx context.Context, userID, id uuid.UUID, input HabitInput) (*domain.Habit, error) {
	if err := checkHabit(input); err != nil {
		return nil, err
	}

	h, err := s.habits.GetByID(ctx, userID, id)
	if err != nil {
		return nil, habitErr(err, "get habit for update")
	}
	applyHabit(h, input, time.Now().UTC())

	if err := s.habits.Update(ctx, h); err != nil {
		return nil, habitErr(err, "update habit")
	}

	s.logger.InfoContext(ctx, "habit updated", slog.String("habit_id", id.String()))
	return h, nil
}

// Delete removes one of the user's habits with its trackings.
func (s *HabitService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.habits.Delete(ctx, userID, id); err != nil {
		return habitErr(err, "delete habit")
	}
	s.logger.InfoContext(ctx, "habit deleted", slog.String("habit_id", id.String()))
	return nil
}

// CreateTracking records a tracking on one of the user's habits.
func (s *HabitService) CreateTracking(ctx context.Context, userID uuid.UUID, input TrackingInput) (*domain.Tracking, error) {
	if _, err := s.habits.GetByID(ctx, userID, input.HabitID); err != nil {
		return nil, habitErr(err, "get habit for tracking")
	}

	t := &domain.Tracking{
		ID:           uuid.New(),
		HabitID:      input.HabitID,
		AmountOfDays: input.AmountOfDays,
		DoneDate:     input.DoneDate,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.trackings.Create(ctx, t); err != nil {
		return nil, habitErr(err, "create tracking")
	}

	s.logger.InfoContext(ctx, "tracking created",
		slog.String("tracking_id", t.ID.String()),
		slog.String("habit_id", t.HabitID.String()),
	)
	return t, nil
}

// ListTrackings returns the trackings of one of the user's habits.
func (s *HabitService) ListTrackings(ctx context.Context, userID, habitID uuid.UUID) ([]domain.Tracking, error) {
	if _, err := s.habits.GetByID(ctx, userID, habitID); err != nil {
		return nil, habitErr(err, "get habit for trackings")
	}
	trackings, err := s.trackings.ListByHabit(ctx, habitID)
	if err != nil {
		return nil, fmt.Errorf("list trackings: %w", err)
	}
	return trackings, nil
}

func checkHabit(input HabitInput) error {
	switch input.ExecutionFrequency {
	case domain.FrequencyDay, domain.FrequencyWeek, domain.FrequencyMonth:
	default:
		return apperrors.FieldError("execution_frequency", fmt.Sprintf("%q is not a valid choice.", input.ExecutionFrequency))
	}
	if input.EndDate.Before(input.StartDate) {
		return apperrors.FieldError("end_date", "End date must not be before start date.")
	}
	return nil
}

func applyHabit(h *domain.Habit, input HabitInput, now time.Time) {
	h.Title = input.Title
	h.Description = input.Description
	h.NumberOfRepeats = input.NumberOfRepeats
	h.ExecutionFrequency = input.ExecutionFrequency
	h.StartDate = input.StartDate
	h.EndDate = input.EndDate
	h.UpdatedAt = now
}

func habitErr(err error, op string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NotFoundMessage(msgHabitNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
