// Package storage keeps the pixel data of generated photos. Gallery records
// hold only the reference returned by Put.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get for a reference the store does not know
var ErrNotFound = errors.New("image object not found")

// ImageStore saves and fetches image bytes
type ImageStore interface {
	Put(ctx context.Context, key, mimeType string, data []byte) (string, error) // Returns the reference to keep
	Get(ctx context.Context, ref string) (string, []byte, error)                // Returns MIME type and bytes
	Delete(ctx context.Context, ref string) error
}

// InlineStore keeps images inside the reference itself as data URLs
type InlineStore struct{}

func (InlineStore) Put(ctx context.Context, key, mimeType string, data []byte) (string, error) {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (InlineStore) Get(ctx context.Context, ref string) (string, []byte, error) {
	return decodeDataURL(ref)
}

// Delete is a no-op, the bytes go away with the record
func (InlineStore) Delete(ctx context.Context, ref string) error {
	return nil
}

func decodeDataURL(ref string) (string, []byte, error) {
	header, body, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasPrefix(ref, "data:") || !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrNotFound
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", nil, fmt.Errorf("decode inline image: %w", err)
	}
	return strings.TrimSuffix(header, ";base64"), data, nil
}
