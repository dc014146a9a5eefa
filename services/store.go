package services

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/zhifu/donation-dashboard/models"
)

var (
	// ErrFetchFailed marks a record store query that did not complete.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrMalformedRecord marks a record that cannot take part in aggregation.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrProfileNotFound is returned when a user has no stored profile.
	ErrProfileNotFound = errors.New("profile not found")
)

// DonationFilter narrows a donation query. Zero values disable a condition.
type DonationFilter struct {
	UserID       string
	CreatedAfter time.Time
	Limit        int
}

// RecordStore is the external backend holding donation records and profiles.
type RecordStore interface {
	// Query returns the matching donations ordered by created_at descending.
	Query(ctx context.Context, filter DonationFilter) ([]models.DonationRecord, error)
	// QueryAll returns every donation, used for ranking.
	QueryAll(ctx context.Context) ([]models.DonationRecord, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// validateRecord reports whether rec can be aggregated.
func validateRecord(rec models.DonationRecord) error {
	if rec.ID == "" {
		return errors.Wrap(ErrMalformedRecord, "missing id")
	}
	if rec.CreatedAt.IsZero() {
		return errors.Wrapf(ErrMalformedRecord, "record %s: missing created_at", rec.ID)
	}
	return nil
}

// FetchError wraps a record store failure. It matches ErrFetchFailed with
// errors.Is and unwraps to the store's own error.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return e.Op + ": " + ErrFetchFailed.Error() + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }
