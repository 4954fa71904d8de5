package imagegen

import (
	"context"
	"encoding/json"
	"fmt"

	"passport_studio/internal/domain"

	"github.com/sirupsen/logrus"
)

// PortraitAspect is the aspect ratio requested from the model for every preset;
// the final size comes from Resize
const PortraitAspect = "3:4"

// maxExcerpt bounds the refusal text carried by RefusalError, in runes
const maxExcerpt = 200

// RefusalError is returned when the model answered with text only
type RefusalError struct {
	Excerpt string
}

func (e *RefusalError) Error() string {
	return "generation refused: " + e.Excerpt
}

// Is makes errors.Is(err, ErrGenerationRefused) match
func (e *RefusalError) Is(target error) bool {
	return target == ErrGenerationRefused
}

func excerpt(text string) string {
	r := []rune(text)
	if len(r) <= maxExcerpt {
		return text
	}
	return string(r[:maxExcerpt-3]) + "..."
}

// FaceBox is a face bounding box on a 0..1000 scale
type FaceBox struct {
	YMin float64 `json:"ymin"`
	XMin float64 `json:"xmin"`
	YMax float64 `json:"ymax"`
	XMax float64 `json:"xmax"`
}

// FaceAnalysis is the best-effort alignment hint for a photo
type FaceAnalysis struct {
	RollAngle float64  `json:"rollAngle"`
	FaceBox   *FaceBox `json:"faceBox"`
}

// Client performs generation requests against a Model. It never retries.
type Client struct {
	model Model
}

// NewClient wraps model
func NewClient(model Model) *Client {
	return &Client{model: model}
}

// GeneratePhoto returns the first image the model produced. A text-only reply
// is a RefusalError; a reply with neither is ErrGenerationEmpty.
func (c *Client) GeneratePhoto(ctx context.Context, src Blob, settings domain.PhotoSettings) (Blob, error) {
	reply, err := c.model.EditImage(ctx, src, BuildInstruction(settings), PortraitAspect)
	if err != nil {
		return Blob{}, fmt.Errorf("image model: %w", err)
	}
	if len(reply.Images) > 0 {
		img := reply.Images[0]
		if img.MIMEType == "" {
			img.MIMEType = "image/png"
		}
		return img, nil
	}
	if reply.Text != "" {
		logrus.WithField("reply", excerpt(reply.Text)).Warn("Image model refused")
		return Blob{}, &RefusalError{Excerpt: excerpt(reply.Text)}
	}
	return Blob{}, ErrGenerationEmpty
}

// AnalyzeFace never fails; any problem yields a zero analysis
func (c *Client) AnalyzeFace(ctx context.Context, src Blob) FaceAnalysis {
	text, err := c.model.AnalyzeImage(ctx, src, faceInstruction)
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Face analysis failed")
		return FaceAnalysis{}
	}
	var raw struct {
		RollAngle float64   `json:"rollAngle"`
		FaceBox   []float64 `json:"faceBox"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		logrus.WithField("error", err.Error()).Warn("Face analysis returned invalid JSON")
		return FaceAnalysis{}
	}
	out := FaceAnalysis{RollAngle: raw.RollAngle}
	if len(raw.FaceBox) == 4 && raw.FaceBox[2] > raw.FaceBox[0] && raw.FaceBox[3] > raw.FaceBox[1] {
		out.FaceBox = &FaceBox{YMin: raw.FaceBox[0], XMin: raw.FaceBox[1], YMax: raw.FaceBox[2], XMax: raw.FaceBox[3]}
	}
	return out
}
