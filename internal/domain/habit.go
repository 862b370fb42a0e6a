package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution frequencies of a habit.
const (
	FrequencyDay   = "day"
	FrequencyWeek  = "week"
	FrequencyMonth = "month"
)

// Habit is a recurring activity a user wants to keep up.
type Habit struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Title              string
	Description        string
	NumberOfRepeats    int
	ExecutionFrequency string
	StartDate          time.Time
	EndDate            time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Tracking records that a habit was done on a given day.
type Tracking struct {
	ID           uuid.UUID
	HabitID      uuid.UUID
	AmountOfDays int
	DoneDate     time.Time
	CreatedAt    time.Time
}
