package repository

import (
	"context"
	"errors"

	"github.com/linkboard/dashboard/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLinkNotFound signals that the requested dashboard link does not
	// exist or belongs to another user.
	ErrLinkNotFound = errors.New("dashboard link not found")
)

// DashboardLinkRepository defines the data access contract for the dashboard
// read model. All mutations must be safe under concurrent event workers.
type DashboardLinkRepository interface {
	Create(ctx context.Context, link *model.DashboardLink) error
	Update(ctx context.Context, update model.LinkUpdate) error
	Delete(ctx context.Context, linkID string) error
	IncrementClickCounters(ctx context.Context, linkID, countryCode, deviceType, osName string) error
	IncrementCityClicks(ctx context.Context, linkID, countryCode, cityName, latitude, longitude string) error
	FindByUser(ctx context.Context, userID string, req PageRequest) (*LinkPage, error)
	FindDetail(ctx context.Context, userID, linkID string) (*model.DashboardLink, error)
	FindBreakdownsByUser(ctx context.Context, userID string) ([]model.DashboardLink, error)
	AllLinkIDs(ctx context.Context) ([]string, error)
}

type dashboardLinkRepository struct {
	db *gorm.DB
}

// NewDashboardLinkRepository returns a GORM-backed DashboardLinkRepository.
func NewDashboardLinkRepository(db *gorm.DB) DashboardLinkRepository {
	return &dashboardLinkRepository{db: db}
}

// Create inserts the row, silently keeping the existing one when the link_id
// is already present. Redelivered creation events must not error or
// double-insert.
func (r *dashboardLinkRepository) Create(ctx context.Context, link *model.DashboardLink) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "link_id"}},
			DoNothing: true,
		}).
		Create(link).Error
}

// Update replaces the mutable attributes only. A missing row is a no-op; the
// broker orders lifecycle events per link, so an early update is tolerated,
// not repaired here.
func (r *dashboardLinkRepository) Update(ctx context.Context, update model.LinkUpdate) error {
	return r.db.WithContext(ctx).
		Model(&model.DashboardLink{}).
		Where("link_id = ?", update.LinkID).
		Updates(map[string]interface{}{
			"long_url":   update.LongURL,
			"title":      update.Title,
			"is_active":  update.IsActive,
			"updated_at": update.UpdatedAt,
		}).Error
}

func (r *dashboardLinkRepository) Delete(ctx context.Context, linkID string) error {
	return r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Delete(&model.DashboardLink{}).Error
}

// incrementCountersSQL bumps the total and all three breakdown maps in one
// statement so concurrent workers on the same link cannot lose an update.
const incrementCountersSQL = `
UPDATE dashboard_links
SET
  total_clicks = total_clicks + 1,
  clicks_by_country = jsonb_set(
    clicks_by_country,
    ARRAY[?::text],
    (COALESCE(clicks_by_country ->> ?, '0')::int + 1)::text::jsonb,
    true
  ),
  clicks_by_device = jsonb_set(
    clicks_by_device,
    ARRAY[?::text],
    (COALESCE(clicks_by_device ->> ?, '0')::int + 1)::text::jsonb,
    true
  ),
  clicks_by_os = jsonb_set(
    clicks_by_os,
    ARRAY[?::text],
    (COALESCE(clicks_by_os ->> ?, '0')::int + 1)::text::jsonb,
    true
  )
WHERE link_id = ?`

func (r *dashboardLinkRepository) IncrementClickCounters(ctx context.Context, linkID, countryCode, deviceType, osName string) error {
	return r.db.WithContext(ctx).
		Exec(incrementCountersSQL,
			countryCode, countryCode,
			deviceType, deviceType,
			osName, osName,
			linkID,
		).Error
}

func (r *dashboardLinkRepository) IncrementCityClicks(ctx context.Context, linkID, countryCode, cityName, latitude, longitude string) error {
	stat := model.CityStat{
		LinkID:      linkID,
		CountryCode: countryCode,
		CityName:    cityName,
		Latitude:    latitude,
		Longitude:   longitude,
		Clicks:      1,
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "link_id"}, {Name: "country_code"}, {Name: "city_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"clicks": gorm.Expr("dashboard_link_city_stats.clicks + 1"),
			}),
		}).
		Create(&stat).Error
}

// summaryColumns excludes the breakdown maps; listings only need scalars.
const summaryColumns = "id, link_id, user_id, short_url, long_url, title, is_active, created_at, updated_at, total_clicks"

func (r *dashboardLinkRepository) FindByUser(ctx context.Context, userID string, req PageRequest) (*LinkPage, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&model.DashboardLink{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, err
	}

	if total == 0 {
		return emptyPage(req), nil
	}

	var items []model.DashboardLink
	if err := r.db.WithContext(ctx).
		Select(summaryColumns).
		Where("user_id = ?", userID).
		Order(orderByClause(req.Sort)).
		Limit(req.Size).
		Offset(req.Offset()).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &LinkPage{
		Items:         items,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages(total, req.Size),
	}, nil
}

func (r *dashboardLinkRepository) FindDetail(ctx context.Context, userID, linkID string) (*model.DashboardLink, error) {
	var link model.DashboardLink
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND link_id = ?", userID, linkID).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// FindBreakdownsByUser loads the breakdown maps for every link a user owns,
// for tenant-wide aggregation. Rows come back with raw jsonb payloads.
func (r *dashboardLinkRepository) FindBreakdownsByUser(ctx context.Context, userID string) ([]model.DashboardLink, error) {
	var items []model.DashboardLink
	if err := r.db.WithContext(ctx).
		Select("link_id, total_clicks, clicks_by_country, clicks_by_device, clicks_by_os").
		Where("user_id = ?", userID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AllLinkIDs lists every known link id, used to seed the click prefilter at
// startup.
func (r *dashboardLinkRepository) AllLinkIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&model.DashboardLink{}).
		Pluck("link_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
