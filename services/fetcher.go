package services

import (
	"context"
	"time"

	"github.com/zhifu/donation-dashboard/models"
)

const (
	DefaultLookback      = 30 * 24 * time.Hour
	DefaultActivityLimit = 50
)

// nowFunc is replaced in tests.
var nowFunc = time.Now

// RecordFetcher 捐款记录获取器
// Every call goes to the store; nothing is cached.
type RecordFetcher struct {
	store    RecordStore
	lookback time.Duration
	limit    int
	timeout  time.Duration
}

func NewRecordFetcher(store RecordStore, lookback time.Duration, limit int, timeout time.Duration) *RecordFetcher {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return &RecordFetcher{
		store:    store,
		lookback: lookback,
		limit:    limit,
		timeout:  timeout,
	}
}

func (f *RecordFetcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

// FetchRecent returns the user's donations inside the lookback window,
// newest first, at most limit of them. On failure the list is empty and the
// error matches ErrFetchFailed.
func (f *RecordFetcher) FetchRecent(ctx context.Context, userID string) ([]models.DonationRecord, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	records, err := f.store.Query(ctx, DonationFilter{
		UserID:       userID,
		CreatedAfter: nowFunc().Add(-f.lookback),
		Limit:        f.limit,
	})
	if err != nil {
		return []models.DonationRecord{}, &FetchError{Op: "fetch recent donations", Err: err}
	}
	return records, nil
}

// FetchAll returns every donation of every user.
func (f *RecordFetcher) FetchAll(ctx context.Context) ([]models.DonationRecord, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	records, err := f.store.QueryAll(ctx)
	if err != nil {
		return []models.DonationRecord{}, &FetchError{Op: "fetch all donations", Err: err}
	}
	return records, nil
}

func (f *RecordFetcher) CountDonations(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	count, err := f.store.CountByUser(ctx, userID)
	if err != nil {
		return 0, &FetchError{Op: "count donations", Err: err}
	}
	return count, nil
}

// FetchProfile returns ErrProfileNotFound unwrapped so callers can tell a
// missing profile from a failed read.
func (f *RecordFetcher) FetchProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	profile, err := f.store.GetProfile(ctx, userID)
	if err == ErrProfileNotFound {
		return nil, err
	}
	if err != nil {
		return nil, &FetchError{Op: "fetch profile", Err: err}
	}
	return profile, nil
}
