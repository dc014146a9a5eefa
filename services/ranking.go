package services

import (
	"sort"

	"github.com/zhifu/donation-dashboard/models"
)

// RankUnavailable is reported when the ranking query failed.
const RankUnavailable = 0

// AggregateTotals 汇总每个用户的积分
// The result is ordered by points descending; equal totals are ordered by
// user ID ascending so ranks are reproducible.
func AggregateTotals(records []models.DonationRecord) []models.UserPointsTotal {
	index := make(map[string]int)
	var totals []models.UserPointsTotal

	for _, rec := range records {
		if rec.UserID == "" || validateRecord(rec) != nil {
			continue
		}
		i, ok := index[rec.UserID]
		if !ok {
			i = len(totals)
			index[rec.UserID] = i
			totals = append(totals, models.UserPointsTotal{UserID: rec.UserID})
		}
		totals[i].Points += CalculatePoints(rec)
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Points != totals[j].Points {
			return totals[i].Points > totals[j].Points
		}
		return totals[i].UserID < totals[j].UserID
	})
	return totals
}

// ComputeRank returns the 1-indexed rank of userID. A user without donations
// is placed after everyone else; with no donations at all the rank is 1.
func ComputeRank(records []models.DonationRecord, userID string) int {
	totals := AggregateTotals(records)
	for i, total := range totals {
		if total.UserID == userID {
			return i + 1
		}
	}
	return len(totals) + 1
}

// Leaderboard 排行榜
// Returns at most limit entries; limit <= 0 returns all users.
func Leaderboard(records []models.DonationRecord, limit int) ([]models.LeaderboardEntry, int) {
	totals := AggregateTotals(records)
	n := len(totals)
	if limit > 0 && limit < n {
		n = limit
	}

	entries := make([]models.LeaderboardEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = models.LeaderboardEntry{
			Rank:   i + 1,
			UserID: totals[i].UserID,
			Points: totals[i].Points,
		}
	}
	return entries, len(totals)
}
