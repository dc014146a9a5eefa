package models

import (
	"time"
)

// UserProfile holds the public profile fields shown next to the dashboard.
type UserProfile struct {
	UserID      string    `gorm:"primaryKey;size:128" json:"user_id" firestore:"-"`
	DisplayName string    `gorm:"size:100" json:"display_name" firestore:"display_name"`
	AvatarURL   string    `gorm:"size:255" json:"avatar_url" firestore:"avatar_url"`
	CreatedAt   time.Time `json:"created_at" firestore:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updated_at"`
}

func (UserProfile) TableName() string {
	return "profiles"
}
