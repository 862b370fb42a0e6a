package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/HabitGo/internal/domain"
	"github.com/utafrali/HabitGo/internal/service"
	apperrors "github.com/utafrali/HabitGo/pkg/errors"
	"github.com/utafrali/HabitGo/pkg/httputil"
	"github.com/utafrali/HabitGo/pkg/validator"
)

// Form fields beyond the avatar itself.
const formOverhead = 1 << 20

// ProfileHandler handles HTTP requests for the caller's profile. Bodies are
// multipart forms so the avatar can travel with the other fields.
type ProfileHandler struct {
	service        *service.ProfileService
	avatarMaxBytes int64
	logger         *slog.Logger
}

// NewProfileHandler creates a new profile HTTP handler.
func NewProfileHandler(svc *service.ProfileService, avatarMaxBytes int64, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{service: svc, avatarMaxBytes: avatarMaxBytes, logger: logger}
}

// CreateProfileForm is the form body for profile creation.
type CreateProfileForm struct {
	Name       string `form:"name" validate:"required,max=150"`
	Language   string `form:"language" validate:"required"`
	ColorTheme string `form:"color_theme" validate:"required"`
}

// UpdateProfileForm is the form body for a partial profile update.
type UpdateProfileForm struct {
	Name       *string `form:"name" validate:"omitempty,max=150"`
	Language   *string `form:"language"`
	ColorTheme *string `form:"color_theme"`
}

// ProfileResponse is the public representation of a profile.
type ProfileResponse struct {
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar"`
	Language   string    `json:"language"`
	ColorTheme string    `json:"color_theme"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (h *ProfileHandler) toResponse(r *http.Request, p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		Name:       p.Name,
		Avatar:     h.service.AvatarURL(r.Context(), p.AvatarKey),
		Language:   p.Language,
		ColorTheme: p.ColorTheme,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// Get handles GET /profile/
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.toResponse(r, p))
}

// Create handles POST /profile/
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}
	defer cleanupForm(r)

	form := CreateProfileForm{
		Name:       r.PostFormValue("name"),
		Language:   r.PostFormValue("language"),
		ColorTheme: r.PostFormValue("color_theme"),
	}
	if err := validator.Validate(form); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	avatar, err := formAvatar(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	p, err := h.service.Create(r.Context(), id.UserID, service.CreateProfileInput{
		Name:       form.Name,
		Language:   form.Language,
		ColorTheme: form.ColorTheme,
		Avatar:     avatar,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, h.toResponse(r, p))
}

// Update handles PUT /profile/. Only the submitted fields change.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}
	defer cleanupForm(r)

	form := UpdateProfileForm{
		Name:       postFormPtr(r, "name"),
		Language:   postFormPtr(r, "language"),
		ColorTheme: postFormPtr(r, "color_theme"),
	}
	if err := validator.Validate(form); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	avatar, err := formAvatar(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	p, err := h.service.Update(r.Context(), id.UserID, service.UpdateProfileInput{
		Name:       form.Name,
		Language:   form.Language,
		ColorTheme: form.ColorTheme,
		Avatar:     avatar,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.toResponse(r, p))
}

// Delete handles DELETE /profile/
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ProfileHandler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.avatarMaxBytes+formOverhead)

	err := r.ParseMultipartForm(formOverhead)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, r, apperrors.FieldError("avatar",
				fmt.Sprintf("The file may not exceed %d bytes.", h.avatarMaxBytes)), h.logger)
			return false
		}
		httputil.WriteValidationError(w, fmt.Errorf("parse form: %w", err))
		return false
	}
	return true
}

func postFormPtr(r *http.Request, key string) *string {
	if _, ok := r.PostForm[key]; !ok {
		return nil
	}
	v := r.PostForm.Get(key)
	return &v
}

// formAvatar returns the uploaded avatar, or nil when none was sent. The
// content type is sniffed from the bytes rather than trusted from the part
// header.
func formAvatar(r *http.Request) (*service.Avatar, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.FieldError("avatar", "The submitted data was not a file.")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.FieldError("avatar", "The submitted file could not be read.")
	}

	return &service.Avatar{
		Filename:    header.Filename,
		ContentType: http.DetectContentType(data),
		Size:        int64(len(data)),
		Data:        bytes.NewReader(data),
	}, nil
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
