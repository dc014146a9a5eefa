package services

import (
	"fmt"
	"strings"

	"github.com/zhifu/donation-dashboard/models"
)

// IconKey is the icon bucket a category is displayed with.
type IconKey string

const (
	IconClothing    IconKey = "clothing"
	IconBooks       IconKey = "books"
	IconFood        IconKey = "food"
	IconCash        IconKey = "cash"
	IconService     IconKey = "service"
	IconElectronics IconKey = "electronics"
	IconOther       IconKey = "other"
)

var iconKeys = map[string]IconKey{
	"clothing":    IconClothing,
	"clothes":     IconClothing,
	"books":       IconBooks,
	"book":        IconBooks,
	"food":        IconFood,
	"cash":        IconCash,
	"money":       IconCash,
	"service":     IconService,
	"volunteer":   IconService,
	"electronics": IconElectronics,
	"gadgets":     IconElectronics,
	"devices":     IconElectronics,
}

// IconKeyFor 类目图标
func IconKeyFor(category string) IconKey {
	if key, ok := iconKeys[normalizeCategory(category)]; ok {
		return key
	}
	return IconOther
}

// Describe renders the one-line activity text of a donation.
func Describe(rec models.DonationRecord) string {
	quantity := ResolveQuantity(rec.Quantity)

	switch normalizeCategory(rec.Category) {
	case "cash", "money":
		return fmt.Sprintf("Cash Donation of %d %s", quantity, plural(quantity, "unit"))
	case "service", "volunteer":
		return fmt.Sprintf("Volunteered %d %s", quantity, plural(quantity, "hour"))
	}

	label := strings.TrimSpace(rec.Category)
	if label == "" {
		label = "Item"
	}
	if quantity > 1 {
		return fmt.Sprintf("%s Donation (%d items)", label, quantity)
	}
	return label + " Donation"
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// ToActivityEntry 转换为动态条目
func ToActivityEntry(rec models.DonationRecord) models.ActivityEntry {
	return models.ActivityEntry{
		ID:          rec.ID,
		CategoryKey: string(IconKeyFor(rec.Category)),
		Description: Describe(rec),
		OccurredAt:  rec.CreatedAt,
		Points:      CalculatePoints(rec),
		Quantity:    ResolveQuantity(rec.Quantity),
	}
}

// BuildActivity converts records into activity entries, keeping their order.
// Malformed records are dropped and counted in skipped.
func BuildActivity(records []models.DonationRecord) (entries []models.ActivityEntry, totalPoints int, skipped int) {
	entries = make([]models.ActivityEntry, 0, len(records))
	for _, rec := range records {
		if err := validateRecord(rec); err != nil {
			skipped++
			continue
		}
		entry := ToActivityEntry(rec)
		totalPoints += entry.Points
		entries = append(entries, entry)
	}
	return entries, totalPoints, skipped
}
