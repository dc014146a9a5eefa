package services

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/zhifu/donation-dashboard/models"
)

// GormStore reads donations and profiles from a SQL database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// donationQuery 构建捐款查询
func (s *GormStore) donationQuery(ctx context.Context, filter DonationFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.DonationRecord{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if !filter.CreatedAfter.IsZero() {
		query = query.Where("created_at >= ?", filter.CreatedAfter)
	}

	query = query.Order("created_at desc")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return query
}

func (s *GormStore) Query(ctx context.Context, filter DonationFilter) ([]models.DonationRecord, error) {
	var records []models.DonationRecord
	if err := s.donationQuery(ctx, filter).Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "query donations")
	}
	return records, nil
}

func (s *GormStore) QueryAll(ctx context.Context) ([]models.DonationRecord, error) {
	var records []models.DonationRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "query all donations")
	}
	return records, nil
}

func (s *GormStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.DonationRecord{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count donations")
	}
	return count, nil
}

func (s *GormStore) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	return &profile, nil
}
