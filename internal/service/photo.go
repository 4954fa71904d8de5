package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"passport_studio/internal/domain"
	"passport_studio/internal/imagegen"
	"passport_studio/internal/notify"
	"passport_studio/internal/storage"
	"passport_studio/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// evictBatch is how many of the oldest gallery entries make room for a new one
const evictBatch = 10

// sessionRefPrefix marks generation charges in transaction references
const sessionRefPrefix = "gen:"

// Generator is the image model client used by Photos
type Generator interface {
	GeneratePhoto(ctx context.Context, src imagegen.Blob, settings domain.PhotoSettings) (imagegen.Blob, error)
	AnalyzeFace(ctx context.Context, src imagegen.Blob) imagegen.FaceAnalysis
}

// GenerateInput is one generation request
type GenerateInput struct {
	UserID    string
	SessionID string // Client editing session; only the first successful generation per source is charged
	Source    imagegen.Blob
	Settings  domain.PhotoSettings
	AutoAlign bool // Straighten and crop around the face before generating
}

// GenerateResult is a finished photo
type GenerateResult struct {
	Image   *domain.GeneratedImage `json:"image,omitempty"` // Nil when the gallery could not keep it
	DataURL string                 `json:"dataUrl"`         // Final resized photo
	Charged int64                  `json:"charged"`
	Balance int64                  `json:"balance"`
	Saved   bool                   `json:"saved"`
}

// Photos runs the generation lifecycle: balance check, model call, resize,
// charge, gallery
type Photos struct {
	store  store.Store
	ledger *Ledger
	gen    Generator
	images storage.ImageStore
	events notify.Publisher
	policy Policy
}

// NewPhotos creates the photo service
func NewPhotos(st store.Store, ledger *Ledger, gen Generator, images storage.ImageStore, events notify.Publisher, policy Policy) *Photos {
	return &Photos{store: st, ledger: ledger, gen: gen, images: images, events: events, policy: policy}
}

// sessionRef ties a charge to the editing session and the uploaded photo, so
// only regenerations of the same source within a session are free. The digest
// keeps the reference a fixed length whatever the client sends.
func sessionRef(sessionID string, src imagegen.Blob) string {
	if sessionID = strings.TrimSpace(sessionID); sessionID == "" {
		return sessionRefPrefix + uuid.NewString()
	}
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write(src.Data)
	return sessionRefPrefix + hex.EncodeToString(h.Sum(nil))
}

// Analyze asks the model for an alignment hint; it never fails
func (s *Photos) Analyze(ctx context.Context, src imagegen.Blob) imagegen.FaceAnalysis {
	return s.gen.AnalyzeFace(ctx, src)
}

// Generate refuses before calling the model when an unpaid session cannot
// cover the cost. The charge is applied only after a photo came back.
func (s *Photos) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	user, err := s.store.GetUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := imagegen.CheckImage(in.Source); err != nil {
		return nil, err
	}
	ref := sessionRef(in.SessionID, in.Source)
	paid, err := s.ledger.HasReference(ctx, user.ID, ref)
	if err != nil {
		return nil, err
	}
	cost := s.policy.GenerationCost
	if paid {
		cost = 0
	}
	if user.Balance < cost {
		return nil, ErrInsufficientBalance
	}

	src := in.Source
	if in.AutoAlign {
		if aligned, err := imagegen.Align(src, s.gen.AnalyzeFace(ctx, src)); err == nil {
			src = aligned
		} else {
			logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()}).Warn("Auto-align skipped")
		}
	}

	raw, err := s.gen.GeneratePhoto(ctx, src, in.Settings)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()}).Warn("Generation failed")
		return nil, err
	}
	final, err := imagegen.Resize(raw, in.Settings.Size.Width, in.Settings.Size.Height)
	if err != nil {
		return nil, fmt.Errorf("resize generated photo: %w", err)
	}

	res := &GenerateResult{DataURL: final.DataURL(), Balance: user.Balance}
	if cost > 0 {
		charged, applied, err := s.ledger.ApplyOnce(ctx, Entry{UserID: user.ID, Amount: -cost, Description: DescGeneration, Reference: ref})
		if err != nil {
			return nil, err
		}
		if applied {
			res.Charged = cost
		}
		res.Balance = charged.Balance
	}

	img, err := s.saveToGallery(ctx, user, final, in.Settings.Summary())
	if err != nil {
		logrus.WithFields(logrus.Fields{"user_id": user.ID, "error": err.Error()}).Error("Failed to save generated photo")
		return res, nil
	}
	res.Image = img
	res.Saved = true
	publish(ctx, s.events, notify.NewEvent(notify.EventImageCreated, img), notify.UserTopic(user.ID), notify.AdminTopic)
	return res, nil
}

// saveToGallery evicts the oldest entries and retries once when the gallery is full
func (s *Photos) saveToGallery(ctx context.Context, user *domain.User, photo imagegen.Blob, summary string) (*domain.GeneratedImage, error) {
	id := uuid.NewString()
	ref, err := s.images.Put(ctx, "gallery/"+user.ID+"/"+id+imagegen.Extension(photo.MIMEType), photo.MIMEType, photo.Data)
	if err != nil {
		return nil, err
	}
	img := &domain.GeneratedImage{
		ID:        id,
		UserID:    user.ID,
		UserName:  user.Name,
		ImageData: ref,
		Settings:  summary,
	}
	err = s.store.CreateImage(ctx, img)
	if errors.Is(err, store.ErrQuotaExceeded) {
		s.evict(ctx, evictBatch)
		err = s.store.CreateImage(ctx, img)
	}
	if err != nil {
		_ = s.images.Delete(ctx, ref)
		return nil, err
	}
	return img, nil
}

// evict drops the n oldest gallery entries together with their pixels
func (s *Photos) evict(ctx context.Context, n int) int {
	victims, err := s.store.DeleteOldestImages(ctx, n)
	if err != nil {
		logrus.WithField("error", err.Error()).Error("Gallery eviction failed")
		return 0
	}
	for _, v := range victims {
		if err := s.images.Delete(ctx, v.ImageData); err != nil {
			logrus.WithFields(logrus.Fields{"image_id": v.ID, "error": err.Error()}).Warn("Failed to delete evicted image")
		}
	}
	logrus.WithField("count", len(victims)).Info("Evicted oldest gallery entries")
	return len(victims)
}

// Trim evicts entries beyond limit, oldest first
func (s *Photos) Trim(ctx context.Context, limit int64) (int, error) {
	n, err := s.store.CountImages(ctx)
	if err != nil {
		return 0, err
	}
	if limit <= 0 || n <= limit {
		return 0, nil
	}
	return s.evict(ctx, int(n-limit)), nil
}

// Gallery lists images matching f, newest first
func (s *Photos) Gallery(ctx context.Context, f store.ImageFilter) ([]domain.GeneratedImage, error) {
	return s.store.ListImages(ctx, f)
}

// Download returns the pixels of one gallery entry. Non-admin viewers may only
// fetch their own photos.
func (s *Photos) Download(ctx context.Context, viewer *domain.User, id string) (*domain.GeneratedImage, imagegen.Blob, error) {
	img, err := s.store.GetImage(ctx, id)
	if err != nil {
		return nil, imagegen.Blob{}, err
	}
	if !viewer.IsAdmin() && img.UserID != viewer.ID {
		return nil, imagegen.Blob{}, ErrNotFound
	}
	mime, data, err := s.images.Get(ctx, img.ImageData)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, imagegen.Blob{}, ErrNotFound
	}
	if err != nil {
		return nil, imagegen.Blob{}, err
	}
	return img, imagegen.Blob{MIMEType: mime, Data: data}, nil
}
