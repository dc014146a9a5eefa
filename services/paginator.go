package services

import (
	"github.com/zhifu/donation-dashboard/models"
)

// DefaultItemsPerPage is the activity page size.
const DefaultItemsPerPage = 5

// TotalPages returns ceil(total/perPage), or 0 for an empty list.
func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// GetPage 获取分页数据
// Pages are 1-indexed. Pages outside the list yield an empty slice.
func GetPage(list []models.ActivityEntry, page, perPage int) []models.ActivityEntry {
	if page < 1 || perPage <= 0 {
		return []models.ActivityEntry{}
	}
	start := (page - 1) * perPage
	if start >= len(list) {
		return []models.ActivityEntry{}
	}
	end := start + perPage
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

// NextPage moves forward one page, staying put on the last page.
func NextPage(current, totalPages int) int {
	if current >= totalPages {
		return current
	}
	return current + 1
}

// PrevPage moves back one page, staying put on the first page.
func PrevPage(current int) int {
	if current <= 1 {
		return current
	}
	return current - 1
}

// Paginator is a paged view over an activity list. It is not safe for
// concurrent use; Session serialises access.
type Paginator struct {
	items       []models.ActivityEntry
	perPage     int
	currentPage int
}

func NewPaginator(perPage int) *Paginator {
	if perPage <= 0 {
		perPage = DefaultItemsPerPage
	}
	return &Paginator{perPage: perPage, currentPage: 1}
}

// Replace swaps the underlying list and always returns to page 1.
func (p *Paginator) Replace(items []models.ActivityEntry) {
	p.items = items
	p.currentPage = 1
}

func (p *Paginator) CurrentPage() int { return p.currentPage }

func (p *Paginator) ItemsPerPage() int { return p.perPage }

func (p *Paginator) TotalPages() int {
	return TotalPages(len(p.items), p.perPage)
}

func (p *Paginator) Page() []models.ActivityEntry {
	return GetPage(p.items, p.currentPage, p.perPage)
}

func (p *Paginator) Next() {
	p.currentPage = NextPage(p.currentPage, p.TotalPages())
}

func (p *Paginator) Prev() {
	p.currentPage = PrevPage(p.currentPage)
}
