package repository

import "strings"

// Sortable columns for user-facing listing. Anything outside this set is
// dropped before it can reach an ORDER BY clause.
var allowedSortColumns = map[string]struct{}{
	"created_at":   {},
	"total_clicks": {},
	"title":        {},
	"short_url":    {},
}

const defaultOrder = "created_at DESC"

// orderByClause builds a safe ORDER BY body from a caller-supplied sort.
// Unknown fields are discarded; an empty result falls back to newest-first.
func orderByClause(sort []SortOrder) string {
	parts := make([]string, 0, len(sort))
	for _, order := range sort {
		if _, ok := allowedSortColumns[order.Field]; !ok {
			continue
		}
		dir := "ASC"
		if strings.EqualFold(string(order.Direction), string(SortDesc)) {
			dir = "DESC"
		}
		parts = append(parts, order.Field+" "+dir)
	}

	if len(parts) == 0 {
		return defaultOrder
	}
	return strings.Join(parts, ", ")
}
