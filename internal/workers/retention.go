package workers

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Trimmer evicts gallery entries beyond a limit
type Trimmer interface {
	Trim(ctx context.Context, limit int64) (int, error)
}

// Retention keeps the gallery at or below Limit entries
type Retention struct {
	photos Trimmer
	limit  int64
}

// NewRetention creates the sweep; a limit of 0 disables it
func NewRetention(photos Trimmer, limit int64) *Retention {
	return &Retention{photos: photos, limit: limit}
}

// Sweep runs one pass and returns how many entries were evicted
func (r *Retention) Sweep(ctx context.Context) (int, error) {
	if r.limit <= 0 {
		return 0, nil
	}
	n, err := r.photos.Trim(ctx, r.limit)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logrus.WithFields(logrus.Fields{"evicted": n, "limit": r.limit}).Info("Gallery retention sweep")
	}
	return n, nil
}
