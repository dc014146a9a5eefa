package services

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zhifu/donation-dashboard/models"
)

const (
	donationsCollection = "donations"
	profilesCollection  = "profiles"
)

// FirestoreStore reads donations and profiles from Cloud Firestore.
// created_at may be a Firestore timestamp or an ISO-8601 string.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// Query filters by user on the server. The window, ordering and limit are
// applied after decoding: Firestore only compares created_at values of the
// same type, and older documents store it as a string.
func (s *FirestoreStore) Query(ctx context.Context, filter DonationFilter) ([]models.DonationRecord, error) {
	query := s.client.Collection(donationsCollection).Query
	if filter.UserID != "" {
		query = query.Where("user_id", "==", filter.UserID)
	}
	records, err := s.collect(query.Documents(ctx))
	if err != nil {
		return nil, err
	}
	return applyFilter(records, filter), nil
}

// applyFilter keeps the records inside the window, newest first, at most
// filter.Limit of them. Records without created_at only survive when no
// window is set.
func applyFilter(records []models.DonationRecord, filter DonationFilter) []models.DonationRecord {
	out := make([]models.DonationRecord, 0, len(records))
	for _, rec := range records {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if !filter.CreatedAfter.IsZero() && rec.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (s *FirestoreStore) QueryAll(ctx context.Context) ([]models.DonationRecord, error) {
	return s.collect(s.client.Collection(donationsCollection).Documents(ctx))
}

func (s *FirestoreStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	query := s.client.Collection(donationsCollection).Where("user_id", "==", userID)
	aggregation := query.NewAggregationQuery().WithCount("count")

	results, err := aggregation.Get(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "count donations")
	}
	return aggregateCount(results["count"])
}

func (s *FirestoreStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	snap, err := s.client.Collection(profilesCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}

	var profile models.UserProfile
	if err := snap.DataTo(&profile); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}
	profile.UserID = snap.Ref.ID
	return &profile, nil
}

// collect drains iter. Documents that cannot be decoded are still returned
// with a zero created_at so the aggregation layer can skip and count them.
func (s *FirestoreStore) collect(iter *firestore.DocumentIterator) ([]models.DonationRecord, error) {
	defer iter.Stop()

	var records []models.DonationRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterate donations")
		}
		rec, _ := recordFromData(snap.Ref.ID, snap.Data())
		records = append(records, rec)
	}
	return records, nil
}

// recordFromData decodes a donation document. created_at may be a Firestore
// timestamp or an ISO-8601 string written by older clients.
func recordFromData(id string, data map[string]interface{}) (models.DonationRecord, error) {
	rec := models.DonationRecord{ID: id}

	if v, ok := data["user_id"].(string); ok {
		rec.UserID = v
	}
	if v, ok := data["category"].(string); ok {
		rec.Category = v
	}

	switch v := data["quantity"].(type) {
	case int64:
		q := int(v)
		rec.Quantity = &q
	case float64:
		q := int(v)
		rec.Quantity = &q
	}

	switch v := data["created_at"].(type) {
	case time.Time:
		rec.CreatedAt = v
	case string:
		t, err := parseTimestamp(v)
		if err != nil {
			return rec, errors.Wrapf(ErrMalformedRecord, "record %s: created_at %q", id, v)
		}
		rec.CreatedAt = t
	default:
		return rec, errors.Wrapf(ErrMalformedRecord, "record %s: missing created_at", id)
	}
	return rec, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999", s)
}

func aggregateCount(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case *firestorepb.Value:
		return n.GetIntegerValue(), nil
	default:
		return 0, errors.Errorf("unexpected count result %T", v)
	}
}
