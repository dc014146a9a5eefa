package services

import (
	"strings"

	"github.com/zhifu/donation-dashboard/models"
)

// DefaultPointsPerUnit applies to every category missing from categoryPoints.
const DefaultPointsPerUnit = 25

var categoryPoints = map[string]int{
	"goods":     50,
	"clothing":  50,
	"books":     50,
	"food":      50,
	"service":   100,
	"volunteer": 100,
	"cash":      30,
	"money":     30,
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// PointsPerUnit 每单位积分
func PointsPerUnit(category string) int {
	if p, ok := categoryPoints[normalizeCategory(category)]; ok {
		return p
	}
	return DefaultPointsPerUnit
}

// IsKnownCategory reports whether category has its own entry in the points table.
func IsKnownCategory(category string) bool {
	_, ok := categoryPoints[normalizeCategory(category)]
	return ok
}

// ResolveQuantity treats a missing or non-positive quantity as one unit.
func ResolveQuantity(quantity *int) int {
	if quantity == nil || *quantity <= 0 {
		return 1
	}
	return *quantity
}

// CalculatePoints 计算积分
func CalculatePoints(rec models.DonationRecord) int {
	return PointsPerUnit(rec.Category) * ResolveQuantity(rec.Quantity)
}
