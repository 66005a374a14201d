package repository

import "github.com/linkboard/dashboard/internal/app/model"

// SortDirection is the requested order direction for one sort field.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// SortOrder is one (field, direction) pair of a caller-supplied sort.
type SortOrder struct {
	Field     string
	Direction SortDirection
}

// PageRequest describes offset/limit pagination. Page is 0-indexed.
type PageRequest struct {
	Page int
	Size int
	Sort []SortOrder
}

// Offset returns the row offset implied by the request.
func (r PageRequest) Offset() int {
	if r.Page < 0 || r.Size < 0 {
		return 0
	}
	return r.Page * r.Size
}

// LinkPage is one page of dashboard links with count metadata.
type LinkPage struct {
	Items         []model.DashboardLink
	Page          int
	Size          int
	TotalElements int64
	TotalPages    int
}

func emptyPage(req PageRequest) *LinkPage {
	return &LinkPage{
		Items: []model.DashboardLink{},
		Page:  req.Page,
		Size:  req.Size,
	}
}

func totalPages(totalElements int64, size int) int {
	if size <= 0 || totalElements <= 0 {
		return 0
	}
	return int((totalElements + int64(size) - 1) / int64(size))
}
