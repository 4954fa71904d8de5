// Package imagegen talks to the hosted multimodal model that edits passport
// photos, and post-processes what comes back.
package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Errors surfaced by GeneratePhoto
var (
	ErrGenerationRefused = errors.New("generation refused")
	ErrGenerationEmpty   = errors.New("no image generated, try a different photo or setting")
	ErrBadImage          = errors.New("unreadable image data")
)

// Blob is raw media with its MIME type
type Blob struct {
	MIMEType string
	Data     []byte
}

// DataURL renders the blob as a base64 data URL
func (b Blob) DataURL() string {
	return "data:" + b.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}

// ParseDataURL accepts either a data URL or bare base64, which is assumed to be JPEG
func ParseDataURL(s string) (Blob, error) {
	mime := "image/jpeg"
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return Blob{}, fmt.Errorf("%w: malformed data URL", ErrBadImage)
		}
		header = strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(header, ";base64") {
			return Blob{}, fmt.Errorf("%w: data URL is not base64", ErrBadImage)
		}
		if m := strings.TrimSuffix(header, ";base64"); m != "" {
			mime = m
		}
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Blob{}, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if len(data) == 0 {
		return Blob{}, fmt.Errorf("%w: empty payload", ErrBadImage)
	}
	return Blob{MIMEType: mime, Data: data}, nil
}

// Reply is everything one model call returned
type Reply struct {
	Images []Blob
	Text   string
}

// Turn is one earlier exchange of an assistant conversation
type Turn struct {
	FromUser bool   `json:"fromUser"`
	Text     string `json:"text"`
}

// Model is the external multimodal model
type Model interface {
	// EditImage sends the photo with an instruction and returns whatever came back
	EditImage(ctx context.Context, src Blob, instruction, aspectRatio string) (*Reply, error)
	// AnalyzeImage returns the model's JSON answer about the photo
	AnalyzeImage(ctx context.Context, src Blob, instruction string) (string, error)
	// Chat answers message given a system instruction and prior turns
	Chat(ctx context.Context, system string, history []Turn, message string) (string, error)
}
