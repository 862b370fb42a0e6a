package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Supported interface languages.
const (
	LanguageKazakh  = "kz"
	LanguageRussian = "ru"
	LanguageEnglish = "en"
)

// Supported color themes.
const (
	ColorThemeBlack = "black"
	ColorThemeWhite = "white"
)

// Profile extends a User one-to-one. It is removed together with its user.
type Profile struct {
	UserID     uuid.UUID `json:"-"`
	Name       string    `json:"name"`
	AvatarKey  string    `json:"-"`
	Language   string    `json:"language"`
	ColorTheme string    `json:"color_theme"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsValidLanguage reports whether lang is one of the supported languages.
func IsValidLanguage(lang string) bool {
	return slices.Contains([]string{LanguageKazakh, LanguageRussian, LanguageEnglish}, lang)
}

// IsValidColorTheme reports whether theme is one of the supported themes.
func IsValidColorTheme(theme string) bool {
	return slices.Contains([]string{ColorThemeBlack, ColorThemeWhite}, theme)
}
