// Package storage keeps rendered code images in an object store and hands
// back the public URL printed or downloaded by operators.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/theater-qr-provisioning/internal/config"
)

// ObjectStore persists opaque blobs under keys.  Delete of a missing key
// is not an error.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (publicURL string, err error)
	Delete(ctx context.Context, key string) error
}

// ErrInvalidKey rejects keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectKey names the image of one seat, or of a single code when seat is
// empty: <theaterId>/<qrName>/<seat|single>-<uuid>.png.  The random suffix
// keeps a re-rendered image from colliding with the one it replaces.
func ObjectKey(theaterID uint64, qrName, seat string) string {
	part := seat
	if part == "" {
		part = "single"
	}
	return fmt.Sprintf("%d/%s/%s-%s.png", theaterID, escapeSegment(qrName), escapeSegment(part), uuid.NewString())
}

func escapeSegment(s string) string {
	s = url.PathEscape(s)
	if s == "." || s == ".." {
		s = strings.ReplaceAll(s, ".", "%2E")
	}
	return s
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// New builds the store selected by cfg.Provider ("gcs" or "local").
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Provider {
	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON, cfg.PublicBaseURL)
	case "local", "":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
