package models

import (
	"time"
)

// DonationRecord is a single contribution logged by a donor. Records are
// written by the donation form of the web shell; this service only reads them.
type DonationRecord struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:128;index" json:"user_id"`
	Category  string    `gorm:"size:50;index" json:"category"`
	Quantity  *int      `json:"quantity,omitempty"` // nil when the donor left it blank
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (DonationRecord) TableName() string {
	return "donations"
}
