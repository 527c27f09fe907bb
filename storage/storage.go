// Package storage puts uploaded images into object storage and returns
// their public URLs
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrUnsupportedType is returned for payloads that are not an accepted image type
var ErrUnsupportedType = errors.New("unsupported file type")

// Provider stores a binary payload and returns its public URL
type Provider interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// ProviderFunc adapts a function to the Provider interface
type ProviderFunc func(ctx context.Context, key, contentType string, body io.Reader) (string, error)

func (f ProviderFunc) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	return f(ctx, key, contentType, body)
}

// fallback tries a primary provider, then a secondary one
type fallback struct {
	primary   Provider
	secondary Provider
	log       logrus.FieldLogger
}

// Fallback returns a provider that attempts primary first and secondary on
// failure. The first success wins; when both fail the primary's error is
// returned and the secondary's is logged. A nil secondary disables fallback.
func Fallback(primary, secondary Provider, log logrus.FieldLogger) Provider {
	if secondary == nil {
		return primary
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &fallback{primary: primary, secondary: secondary, log: log}
}

func (f *fallback) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	// buffer once so the secondary sees the same bytes
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}

	url, primaryErr := f.primary.Put(ctx, key, contentType, bytes.NewReader(data))
	if primaryErr == nil {
		return url, nil
	}
	f.log.WithError(primaryErr).WithField("key", key).Warn("primary storage failed, trying secondary")

	url, secondaryErr := f.secondary.Put(ctx, key, contentType, bytes.NewReader(data))
	if secondaryErr == nil {
		return url, nil
	}
	f.log.WithError(secondaryErr).WithField("key", key).Error("secondary storage failed")
	return "", primaryErr
}

// allowedImages maps accepted MIME types to file extensions
var allowedImages = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/avif": ".avif",
}

// DetectImage sniffs the payload's MIME type and rejects anything that is
// not an accepted image
func DetectImage(data []byte) (contentType, ext string, err error) {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok := allowedImages[m.String()]; ok {
			return m.String(), ext, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

// NewKey builds a unique object key under prefix, partitioned by month
func NewKey(prefix, ext string, now time.Time) string {
	prefix = strings.Trim(prefix, "/")
	return path.Join(prefix, now.UTC().Format("2006/01"), uuid.NewString()+ext)
}
