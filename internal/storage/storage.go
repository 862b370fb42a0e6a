package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/pkg/slug"
)

// ErrObjectNotFound is returned when no object exists under a key.
var ErrObjectNotFound = errors.New("object not found")

// AvatarExtensions maps the accepted avatar content types to file extensions.
var AvatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Storage defines the interface for avatar object storage.
type Storage interface {
	// Upload stores an object and returns its key and public URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes an object by its key.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for the given key.
	GetURL(ctx context.Context, key string) (string, error)
}

// UploadInput holds the parameters for uploading an object.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// AvatarKey builds "avatars/<userID>/<random>[-<name>].<ext>" for a new
// avatar, where name is a slug of the uploaded file name.
func AvatarKey(userID uuid.UUID, filename, contentType string) string {
	name := uuid.NewString()
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if s := slug.Generate(strings.TrimSuffix(base, path.Ext(base)), 40); s != "" {
		name += "-" + s
	}
	return path.Join("avatars", userID.String(), name+AvatarExtensions[contentType])
}
