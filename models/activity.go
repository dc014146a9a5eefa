package models

import (
	"time"
)

// ActivityEntry is the display-ready view of one DonationRecord.
type ActivityEntry struct {
	ID          string    `json:"id"`
	CategoryKey string    `json:"category_key"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
	Points      int       `json:"points"`
	Quantity    int       `json:"quantity"`
}

// UserPointsTotal is the summed points of one user, built while ranking.
type UserPointsTotal struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// LeaderboardEntry is one row of the community leaderboard.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// ActivityResult is the recent activity of a user. Failed is set when the
// record store could not be read, so an empty list is not mistaken for a
// donor without activity.
type ActivityResult struct {
	Entries     []ActivityEntry `json:"entries"`
	TotalPoints int             `json:"total_points"`
	Failed      bool            `json:"failed"`
}

// RankResult carries the community rank. Rank is 0 when Failed.
type RankResult struct {
	Rank   int  `json:"rank"`
	Failed bool `json:"failed"`
}

// LeaderboardResult is the top of the leaderboard.
type LeaderboardResult struct {
	Entries    []LeaderboardEntry `json:"entries"`
	TotalUsers int                `json:"total_users"`
	Failed     bool               `json:"failed"`
}

// DashboardSummary bundles everything the dashboard shows on first load.
type DashboardSummary struct {
	UserID        string         `json:"user_id"`
	Profile       *UserProfile   `json:"profile,omitempty"`
	ProfileFailed bool           `json:"profile_failed"`
	DonationCount int64          `json:"donation_count"`
	CountFailed   bool           `json:"count_failed"`
	Activity      ActivityResult `json:"activity"`
	Rank          RankResult     `json:"rank"`
}

// DashboardSnapshot is the paged state of a live dashboard session.
type DashboardSnapshot struct {
	UserID      string          `json:"user_id"`
	Entries     []ActivityEntry `json:"entries"`
	CurrentPage int             `json:"current_page"`
	TotalPages  int             `json:"total_pages"`
	TotalPoints int             `json:"total_points"`
	Rank        RankResult      `json:"rank"`
	Loading     bool            `json:"loading"`
	Failed      bool            `json:"failed"`
}
