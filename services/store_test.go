package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/zhifu/donation-dashboard/models"
)

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func setNow(t *testing.T, now time.Time) {
	t.Helper()
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = time.Now })
}

func qty(n int) *int { return &n }

func donation(id, userID, category string, quantity *int, createdAt time.Time) models.DonationRecord {
	return models.DonationRecord{
		ID:        id,
		UserID:    userID,
		Category:  category,
		Quantity:  quantity,
		CreatedAt: createdAt,
	}
}

// memStore is an in-memory RecordStore. Setting queryErr/allErr/countErr/
// profileErr makes the matching call fail; queryHook runs before Query.
type memStore struct {
	mu         sync.Mutex
	records    []models.DonationRecord
	profiles   map[string]models.UserProfile
	queryErr   error
	allErr     error
	countErr   error
	profileErr error
	queryHook  func(ctx context.Context) error
	filters    []DonationFilter
}

func (m *memStore) Query(ctx context.Context, filter DonationFilter) ([]models.DonationRecord, error) {
	if m.queryHook != nil {
		if err := m.queryHook(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filter)
	if m.queryErr != nil {
		return nil, m.queryErr
	}

	var out []models.DonationRecord
	for _, rec := range m.records {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if !filter.CreatedAfter.IsZero() && rec.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) QueryAll(ctx context.Context) ([]models.DonationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allErr != nil {
		return nil, m.allErr
	}
	return append([]models.DonationRecord(nil), m.records...), nil
}

func (m *memStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	var n int64
	for _, rec := range m.records {
		if rec.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (m *memStore) lastFilter() DonationFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.filters) == 0 {
		return DonationFilter{}
	}
	return m.filters[len(m.filters)-1]
}
