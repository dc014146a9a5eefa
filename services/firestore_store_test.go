package services

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhifu/donation-dashboard/models"
)

func TestRecordFromData(t *testing.T) {
	created := time.Date(2026, 9, 30, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		data        map[string]interface{}
		wantQty     *int
		wantCreated time.Time
		wantErr     error
	}{
		{
			name:        "timestamp and integer quantity",
			data:        map[string]interface{}{"user_id": "u1", "category": "food", "quantity": int64(3), "created_at": created},
			wantQty:     qty(3),
			wantCreated: created,
		},
		{
			name:        "iso string and float quantity",
			data:        map[string]interface{}{"user_id": "u1", "category": "cash", "quantity": 2.0, "created_at": "2026-09-30T10:00:00Z"},
			wantQty:     qty(2),
			wantCreated: created,
		},
		{
			name:        "string without zone",
			data:        map[string]interface{}{"user_id": "u1", "created_at": "2026-09-30T10:00:00.123456"},
			wantCreated: created.Add(123456 * time.Microsecond),
		},
		{
			name:    "unparsable created_at",
			data:    map[string]interface{}{"user_id": "u1", "created_at": "yesterday"},
			wantErr: ErrMalformedRecord,
		},
		{
			name:    "missing created_at",
			data:    map[string]interface{}{"user_id": "u1"},
			wantErr: ErrMalformedRecord,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := recordFromData("doc1", tt.data)
			assert.Equal(t, "doc1", rec.ID)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.True(t, rec.CreatedAt.IsZero())
				assert.Error(t, validateRecord(rec))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", rec.UserID)
			assert.Equal(t, tt.wantQty, rec.Quantity)
			assert.True(t, tt.wantCreated.Equal(rec.CreatedAt))
		})
	}
}

func TestApplyFilter(t *testing.T) {
	// Mixed timestamp and string dated documents decode to the same records,
	// so both take part in the window and the ordering.
	fromString, err := recordFromData("s1", map[string]interface{}{
		"user_id":    "u1",
		"category":   "food",
		"created_at": testNow.Add(-2 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	fromTimestamp, err := recordFromData("t1", map[string]interface{}{
		"user_id":    "u1",
		"category":   "cash",
		"created_at": testNow.Add(-time.Hour),
	})
	require.NoError(t, err)

	records := []models.DonationRecord{
		fromString,
		donation("old", "u1", "cash", nil, testNow.Add(-40*24*time.Hour)),
		fromTimestamp,
		donation("t0", "u1", "books", nil, testNow),
		donation("broken", "u1", "books", nil, time.Time{}),
	}
	window := testNow.Add(-30 * 24 * time.Hour)

	ids := func(recs []models.DonationRecord) []string {
		var out []string
		for _, rec := range recs {
			out = append(out, rec.ID)
		}
		return out
	}

	assert.Equal(t, []string{"t0", "t1", "s1"},
		ids(applyFilter(records, DonationFilter{UserID: "u1", CreatedAfter: window})))
	assert.Equal(t, []string{"t0", "t1"},
		ids(applyFilter(records, DonationFilter{UserID: "u1", CreatedAfter: window, Limit: 2})))
	assert.Equal(t, []string{"t0", "t1", "s1", "old", "broken"},
		ids(applyFilter(records, DonationFilter{})))
	assert.Empty(t, applyFilter(records, DonationFilter{UserID: "u2"}))
}

func TestAggregateCount(t *testing.T) {
	n, err := aggregateCount(int64(4))
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	n, err = aggregateCount(&firestorepb.Value{ValueType: &firestorepb.Value_IntegerValue{IntegerValue: 7}})
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	_, err = aggregateCount("7")
	assert.Error(t, err)
}

// TestFirestoreStore runs against the Firestore emulator.
func TestFirestoreStore(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()

	client, err := firestore.NewClient(ctx, "demo-donation-dashboard")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	store := NewFirestoreStore(client)

	userID := "user-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := map[string]map[string]interface{}{
		userID + "-new":    {"user_id": userID, "category": "cash", "quantity": 2, "created_at": now.Add(-time.Hour)},
		userID + "-string": {"user_id": userID, "category": "food", "created_at": now.Add(-2 * time.Hour).Format(time.RFC3339Nano)},
		userID + "-old":    {"user_id": userID, "category": "books", "created_at": now.Add(-40 * 24 * time.Hour)},
		userID + "-other":  {"user_id": userID + "-x", "category": "service", "created_at": now},
	}
	for id, data := range docs {
		_, err := client.Collection(donationsCollection).Doc(id).Set(ctx, data)
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		for id := range docs {
			client.Collection(donationsCollection).Doc(id).Delete(ctx)
		}
		client.Collection(profilesCollection).Doc(userID).Delete(ctx)
	})

	t.Run("query applies window order and limit", func(t *testing.T) {
		filter := DonationFilter{UserID: userID, CreatedAfter: now.Add(-30 * 24 * time.Hour)}
		records, err := store.Query(ctx, filter)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, userID+"-new", records[0].ID)
		assert.Equal(t, qty(2), records[0].Quantity)
		assert.Equal(t, userID+"-string", records[1].ID)

		filter.Limit = 1
		records, err = store.Query(ctx, filter)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, userID+"-new", records[0].ID)
	})

	t.Run("query all", func(t *testing.T) {
		records, err := store.QueryAll(ctx)
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, rec := range records {
			seen[rec.ID] = true
		}
		for id := range docs {
			assert.True(t, seen[id], id)
		}
	})

	t.Run("count by user", func(t *testing.T) {
		count, err := store.CountByUser(ctx, userID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
	})

	t.Run("profile", func(t *testing.T) {
		_, err := store.GetProfile(ctx, userID)
		assert.Equal(t, ErrProfileNotFound, err)

		_, err = client.Collection(profilesCollection).Doc(userID).Set(ctx, map[string]interface{}{
			"display_name": "Uma",
		})
		require.NoError(t, err)

		profile, err := store.GetProfile(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, profile.UserID)
		assert.Equal(t, "Uma", profile.DisplayName)
	})
}
