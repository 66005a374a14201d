package service

import (
	"context"
	"fmt"
	"time"

	"github.com/linkboard/dashboard/internal/app/metric"
	"github.com/linkboard/dashboard/internal/app/repository"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LinkDetail is the single-link view with its click breakdowns, each sorted
// by count descending.
type LinkDetail struct {
	LinkID          string
	ShortURL        string
	LongURL         string
	Title           *string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	TotalClicks     int64
	ClicksByCountry []metric.Entry
	ClicksByDevice  []metric.Entry
	ClicksByOs      []metric.Entry
}

// ClickSummary is a tenant-wide rollup of click breakdowns across all links.
type ClickSummary struct {
	TotalClicks     int64
	ClicksByCountry []metric.Entry
	ClicksByDevice  []metric.Entry
	ClicksByOs      []metric.Entry
}

// DashboardService is the query surface over the read model.
type DashboardService interface {
	ListLinks(ctx context.Context, userID string, req repository.PageRequest) (*repository.LinkPage, error)
	GetLinkDetail(ctx context.Context, userID, linkID string) (*LinkDetail, error)
	UserClickSummary(ctx context.Context, userID string) (*ClickSummary, error)
}

type dashboardService struct {
	logger *zap.Logger
	repo   repository.DashboardLinkRepository
}

// NewDashboardService returns a service implementation backed by the given
// repository.
func NewDashboardService(logger *zap.Logger, repo repository.DashboardLinkRepository) DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dashboardService{logger: logger, repo: repo}
}

// ListLinks returns one page of the user's links. Out-of-range pagination
// values are normalized; sort fields outside the allow-list are dropped by
// the repository, falling back to newest-first.
func (s *dashboardService) ListLinks(ctx context.Context, userID string, req repository.PageRequest) (*repository.LinkPage, error) {
	if req.Page < 0 {
		req.Page = 0
	}
	if req.Size <= 0 {
		req.Size = defaultPageSize
	}
	if req.Size > maxPageSize {
		req.Size = maxPageSize
	}

	page, err := s.repo.FindByUser(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return page, nil
}

// GetLinkDetail resolves one link with its breakdowns. Corrupt breakdown
// jsonb is surfaced as an error here; a single-row read hitting bad data is a
// data integrity problem, not something to paper over.
func (s *dashboardService) GetLinkDetail(ctx context.Context, userID, linkID string) (*LinkDetail, error) {
	link, err := s.repo.FindDetail(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}

	byCountry, err := metric.Decode(link.ClicksByCountry)
	if err != nil {
		return nil, fmt.Errorf("link %s clicks_by_country: %w", linkID, err)
	}
	byDevice, err := metric.Decode(link.ClicksByDevice)
	if err != nil {
		return nil, fmt.Errorf("link %s clicks_by_device: %w", linkID, err)
	}
	byOs, err := metric.Decode(link.ClicksByOs)
	if err != nil {
		return nil, fmt.Errorf("link %s clicks_by_os: %w", linkID, err)
	}

	return &LinkDetail{
		LinkID:          link.LinkID,
		ShortURL:        link.ShortURL,
		LongURL:         link.LongURL,
		Title:           link.Title,
		IsActive:        link.IsActive,
		CreatedAt:       link.CreatedAt,
		UpdatedAt:       link.UpdatedAt,
		TotalClicks:     link.TotalClicks,
		ClicksByCountry: metric.Entries(byCountry),
		ClicksByDevice:  metric.Entries(byDevice),
		ClicksByOs:      metric.Entries(byOs),
	}, nil
}

// UserClickSummary merges the breakdown maps of every link the user owns.
// This bulk path decodes leniently: one corrupt row is logged and counted as
// empty rather than failing the whole rollup.
func (s *dashboardService) UserClickSummary(ctx context.Context, userID string) (*ClickSummary, error) {
	links, err := s.repo.FindBreakdownsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load breakdowns: %w", err)
	}

	summary := &ClickSummary{}
	byCountry := map[string]int64{}
	byDevice := map[string]int64{}
	byOs := map[string]int64{}

	for _, link := range links {
		summary.TotalClicks += link.TotalClicks
		mergeInto(byCountry, metric.DecodeLenient(link.ClicksByCountry, s.logger))
		mergeInto(byDevice, metric.DecodeLenient(link.ClicksByDevice, s.logger))
		mergeInto(byOs, metric.DecodeLenient(link.ClicksByOs, s.logger))
	}

	summary.ClicksByCountry = metric.Entries(byCountry)
	summary.ClicksByDevice = metric.Entries(byDevice)
	summary.ClicksByOs = metric.Entries(byOs)
	return summary, nil
}

func mergeInto(dst, src map[string]int64) {
	for k, v := range src {
		dst[k] += v
	}
}
