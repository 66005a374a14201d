package service

import (
	"context"
	"sort"
	"sync"

	"github.com/linkboard/dashboard/internal/app/metric"
	"github.com/linkboard/dashboard/internal/app/model"
	"github.com/linkboard/dashboard/internal/app/repository"
)

// memoryRepository mimics the Postgres-backed repository's contract closely
// enough for scenario tests: idempotent create, no-op update/delete of
// missing rows, atomic counter increments, allow-listed ordering.
type memoryRepository struct {
	mu     sync.Mutex
	seq    int64
	links  map[string]*model.DashboardLink
	cities map[string]*model.CityStat
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		links:  make(map[string]*model.DashboardLink),
		cities: make(map[string]*model.CityStat),
	}
}

func (r *memoryRepository) Create(_ context.Context, link *model.DashboardLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.links[link.LinkID]; exists {
		return nil
	}
	r.seq++
	stored := *link
	stored.ID = r.seq
	r.links[link.LinkID] = &stored
	return nil
}

func (r *memoryRepository) Update(_ context.Context, update model.LinkUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, exists := r.links[update.LinkID]
	if !exists {
		return nil
	}
	link.LongURL = update.LongURL
	link.Title = update.Title
	link.IsActive = update.IsActive
	link.UpdatedAt = update.UpdatedAt
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, linkID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, linkID)
	return nil
}

func (r *memoryRepository) IncrementClickCounters(_ context.Context, linkID, countryCode, deviceType, osName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, exists := r.links[linkID]
	if !exists {
		return nil
	}

	link.TotalClicks++
	var err error
	if link.ClicksByCountry, err = bump(link.ClicksByCountry, countryCode); err != nil {
		return err
	}
	if link.ClicksByDevice, err = bump(link.ClicksByDevice, deviceType); err != nil {
		return err
	}
	if link.ClicksByOs, err = bump(link.ClicksByOs, osName); err != nil {
		return err
	}
	return nil
}

func bump(raw []byte, key string) ([]byte, error) {
	m, err := metric.Decode(raw)
	if err != nil {
		return nil, err
	}
	m[key]++
	return metric.Encode(m)
}

func (r *memoryRepository) IncrementCityClicks(_ context.Context, linkID, countryCode, cityName, latitude, longitude string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := linkID + "|" + countryCode + "|" + cityName
	if stat, exists := r.cities[key]; exists {
		stat.Clicks++
		return nil
	}
	r.cities[key] = &model.CityStat{
		LinkID:      linkID,
		CountryCode: countryCode,
		CityName:    cityName,
		Latitude:    latitude,
		Longitude:   longitude,
		Clicks:      1,
	}
	return nil
}

func (r *memoryRepository) FindByUser(_ context.Context, userID string, req repository.PageRequest) (*repository.LinkPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rows []model.DashboardLink
	for _, link := range r.links {
		if link.UserID == userID {
			rows = append(rows, *link)
		}
	}

	total := int64(len(rows))
	if total == 0 {
		return &repository.LinkPage{
			Items: []model.DashboardLink{},
			Page:  req.Page,
			Size:  req.Size,
		}, nil
	}

	sortRows(rows, req.Sort)

	start := req.Page * req.Size
	if start > len(rows) {
		start = len(rows)
	}
	end := start + req.Size
	if end > len(rows) {
		end = len(rows)
	}

	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}

	return &repository.LinkPage{
		Items:         rows[start:end],
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}, nil
}

// sortRows mirrors the SQL side: unknown fields are dropped, an empty result
// falls back to created_at descending, only the first surviving field is
// honored (enough for these tests).
func sortRows(rows []model.DashboardLink, orders []repository.SortOrder) {
	allowed := map[string]bool{"created_at": true, "total_clicks": true, "title": true, "short_url": true}

	field := "created_at"
	desc := true
	for _, order := range orders {
		if !allowed[order.Field] {
			continue
		}
		field = order.Field
		desc = order.Direction == repository.SortDesc
		break
	}

	sort.SliceStable(rows, func(i, j int) bool {
		var less bool
		switch field {
		case "total_clicks":
			less = rows[i].TotalClicks < rows[j].TotalClicks
		case "title":
			less = deref(rows[i].Title) < deref(rows[j].Title)
		case "short_url":
			less = rows[i].ShortURL < rows[j].ShortURL
		default:
			less = rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		if desc {
			return !less
		}
		return less
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *memoryRepository) FindDetail(_ context.Context, userID, linkID string) (*model.DashboardLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, exists := r.links[linkID]
	if !exists || link.UserID != userID {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (r *memoryRepository) FindBreakdownsByUser(_ context.Context, userID string) ([]model.DashboardLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []model.DashboardLink
	for _, link := range r.links {
		if link.UserID == userID {
			rows = append(rows, *link)
		}
	}
	return rows, nil
}

func (r *memoryRepository) AllLinkIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.links))
	for id := range r.links {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memoryRepository) cityStat(linkID, countryCode, cityName string) *model.CityStat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cities[linkID+"|"+countryCode+"|"+cityName]
}
