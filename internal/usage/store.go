package usage

import (
	"context"

	"github.com/benvon/focus-companion/internal/models"
)

// Store persists the single UsageRecord document.
//
// Load returns the current record. A missing document yields a fresh record;
// an undecodable one is logged and also yields a fresh record.
//
// Update runs fn against the current record and persists the result as one
// atomic read-modify-write. fn may run more than once if the store retries
// on contention, so it must only depend on the record it is given.
type Store interface {
	Load(ctx context.Context) (*models.UsageRecord, error)
	Update(ctx context.Context, fn func(*models.UsageRecord) error) error
	Close() error
}
