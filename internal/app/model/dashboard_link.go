package model

import (
	"encoding/json"
	"time"
)

// DashboardLink is the denormalized read-model row for one shortened link.
// The three clicks_by_* columns hold sparse category->count maps as jsonb.
type DashboardLink struct {
	ID              int64           `gorm:"primaryKey"`
	LinkID          string          `gorm:"column:link_id;size:64;uniqueIndex;not null"`
	UserID          string          `gorm:"column:user_id;size:64;index;not null"`
	ShortURL        string          `gorm:"column:short_url;type:text;not null"`
	LongURL         string          `gorm:"column:long_url;type:text;not null"`
	Title           *string         `gorm:"type:text"`
	IsActive        bool            `gorm:"column:is_active;not null;default:false"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime:false"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime:false"`
	TotalClicks     int64           `gorm:"not null;default:0"`
	ClicksByCountry json.RawMessage `gorm:"type:jsonb;not null;default:'{}'"`
	ClicksByDevice  json.RawMessage `gorm:"type:jsonb;not null;default:'{}'"`
	ClicksByOs      json.RawMessage `gorm:"type:jsonb;not null;default:'{}'"`
}

// TableName overrides the GORM default.
func (DashboardLink) TableName() string {
	return "dashboard_links"
}

// LinkUpdate carries the fields replaceable after creation. Everything else
// on the row is immutable once written.
type LinkUpdate struct {
	LinkID    string
	LongURL   string
	Title     *string
	IsActive  bool
	UpdatedAt time.Time
}

// CityStat is the per-city click aggregate, keyed by (link, country, city).
// It is independent from the breakdown maps on DashboardLink.
type CityStat struct {
	ID          int64  `gorm:"primaryKey"`
	LinkID      string `gorm:"column:link_id;size:64;uniqueIndex:ux_city_stats_link_city;not null"`
	CountryCode string `gorm:"size:8;uniqueIndex:ux_city_stats_link_city;not null"`
	CityName    string `gorm:"size:128;uniqueIndex:ux_city_stats_link_city;not null"`
	Latitude    string `gorm:"size:32"`
	Longitude   string `gorm:"size:32"`
	Clicks      int64  `gorm:"not null;default:0"`
}

// TableName overrides the GORM default.
func (CityStat) TableName() string {
	return "dashboard_link_city_stats"
}
