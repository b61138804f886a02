// Package uploads stores logo and photo images in a WAFFLE storage backend.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
)

// ErrUnsupportedType is returned for uploads that are not images.
var ErrUnsupportedType = errors.New("unsupported content type")

// Config selects the backend.
type Config struct {
	Type string // local | s3

	LocalPath string
	LocalURL  string

	S3Region    string
	S3Bucket    string
	S3Prefix    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// Open builds the storage backend named by cfg.Type.
func Open(ctx context.Context, cfg Config) (storage.Store, error) {
	switch cfg.Type {
	case "", "local":
		l, err := storage.NewLocal(storage.LocalConfig{
			BasePath: cfg.LocalPath,
			BaseURL:  cfg.LocalURL,
		})
		if err != nil {
			return nil, err
		}
		return l, nil
	case "s3":
		s, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3Endpoint != "",
			Prefix:          cfg.S3Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// NewPath returns a unique object path under dir for an image of
// contentType: dir/YYYY/MM/<uuid>.ext.
func NewPath(dir, contentType string, now time.Time) (string, error) {
	ext, ok := imageExt[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedType
	}
	now = now.UTC()
	return path.Join(dir, fmt.Sprintf("%04d/%02d", now.Year(), now.Month()), uuid.NewString()+ext), nil
}

// PutImage uploads r under dir and returns the object's public URL, or its
// path when the backend has no base URL.
func PutImage(ctx context.Context, store storage.Store, dir, contentType string, r io.Reader) (string, error) {
	p, err := NewPath(dir, contentType, time.Now())
	if err != nil {
		return "", err
	}
	opts := &storage.PutOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	}
	if err := store.Put(ctx, p, r, opts); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if u := store.URL(p); u != "" {
		return u, nil
	}
	return p, nil
}
