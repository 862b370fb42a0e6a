package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/internal/service"
	"github.com/utafrali/HabitGo/pkg/httputil"
	"github.com/utafrali/HabitGo/pkg/pagination"
	"github.com/utafrali/HabitGo/pkg/validator"
)

// HabitHandler handles HTTP requests for habits and their trackings.
type HabitHandler struct {
	service *service.HabitService
	logger  *slog.Logger
}

// NewHabitHandler creates a new habit HTTP handler.
func NewHabitHandler(svc *service.HabitService, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// HabitRequest is the JSON request body for creating or replacing a habit.
type HabitRequest struct {
	Title              string `json:"title" validate:"required,notblank,max=150"`
	Description        string `json:"description" validate:"required,notblank"`
	NumberOfRepeats    *int   `json:"number_of_repeats" validate:"required,gte=0,lte=32767"`
	ExecutionFrequency string `json:"execution_frequency" validate:"required,oneof=day week month"`
	StartDate          string `json:"start_date" validate:"required,date"`
	EndDate            string `json:"end_date" validate:"required,date"`
}

func (r HabitRequest) input() service.HabitInput {
	// Both dates already passed the date tag.
	start, _ := time.Parse(validator.DateLayout, r.StartDate)
	end, _ := time.Parse(validator.DateLayout, r.EndDate)
	return service.HabitInput{
		Title:              r.Title,
		Description:        r.Description,
		NumberOfRepeats:    *r.NumberOfRepeats,
		ExecutionFrequency: r.ExecutionFrequency,
		StartDate:          start,
		EndDate:            end,
	}
}

// TrackingRequest is the JSON request body for recording a tracking.
type TrackingRequest struct {
	Habit        string `json:"habit" validate:"required,uuid"`
	AmountOfDays *int   `json:"amount_of_days" validate:"required,gte=0,lte=32767"`
	DoneDate     string `json:"done_date" validate:"required,date"`
}

// --- Response types ---

// HabitResponse is the public representation of a habit.
type HabitResponse struct {
	ID                 uuid.UUID `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	NumberOfRepeats    int       `json:"number_of_repeats"`
	ExecutionFrequency string    `json:"execution_frequency"`
	StartDate          string    `json:"start_date"`
	EndDate            string    `json:"end_date"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toHabitResponse(h *domain.Habit) HabitResponse {
	return HabitResponse{
		ID:                 h.ID,
		Title:              h.Title,
		Description:        h.Description,
		NumberOfRepeats:    h.NumberOfRepeats,
		ExecutionFrequency: h.ExecutionFrequency,
		StartDate:          h.StartDate.Format(validator.DateLayout),
		EndDate:            h.EndDate.Format(validator.DateLayout),
		CreatedAt:          h.CreatedAt,
		UpdatedAt:          h.UpdatedAt,
	}
}

// TrackingResponse is the public representation of a tracking.
type TrackingResponse struct {
	ID           uuid.UUID `json:"id"`
	Habit        uuid.UUID `json:"habit"`
	AmountOfDays int       `json:"amount_of_days"`
	DoneDate     string    `json:"done_date"`
}

func toTrackingResponse(t *domain.Tracking) TrackingResponse {
	return TrackingResponse{
		ID:           t.ID,
		Habit:        t.HabitID,
		AmountOfDays: t.AmountOfDays,
		DoneDate:     t.DoneDate.Format(validator.DateLayout),
	}
}

// --- Handlers ---

// List handles GET /habits/
func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}

	page, err := h.service.List(r.Context(), id.UserID, pagination.Parse(r.URL.Query()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	data := make([]HabitResponse, 0, len(page.Data))
	for i := range page.Data {
		data = append(data, toHabitResponse(&page.Data[i]))
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.Result[HabitResponse]{
		Data:       data,
		TotalCount: page.TotalCount,
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalPages: page.TotalPages,
		HasNext:    page.HasNext,
		HasPrev:    page.HasPrev,
	})
}

// Create handles POST /habits/
func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}

	var req HabitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	habit, err := h.service.Create(r.Context(), id.UserID, req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toHabitResponse(habit))
}

// Get handles GET /habits/{id}/
func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	habitID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	habit, err := h.service.Get(r.Context(), id.UserID, habitID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toHabitResponse(habit))
}

// Update handles PUT /habits/{id}/
func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	habitID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req HabitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	habit, err := h.service.Update(r.Context(), id.UserID, habitID, req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toHabitResponse(habit))
}

// Delete handles DELETE /habits/{id}/
func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	habitID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id.UserID, habitID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteNoContent(w)
}

// ListTrackings handles GET /habits/{id}/trackings/
func (h *HabitHandler) ListTrackings(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	habitID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	trackings, err := h.service.ListTrackings(r.Context(), id.UserID, habitID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := make([]TrackingResponse, 0, len(trackings))
	for i := range trackings {
		resp = append(resp, toTrackingResponse(&trackings[i]))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// CreateTracking handles POST /trackings/
func (h *HabitHandler) CreateTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}

	var req TrackingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	doneDate, _ := time.Parse(validator.DateLayout, req.DoneDate)
	t, err := h.service.CreateTracking(r.Context(), id.UserID, service.TrackingInput{
		HabitID:      uuid.MustParse(req.Habit),
		AmountOfDays: *req.AmountOfDays,
		DoneDate:     doneDate,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toTrackingResponse(t))
}
