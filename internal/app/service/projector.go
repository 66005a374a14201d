package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linkboard/dashboard/internal/app/model"
	"github.com/linkboard/dashboard/internal/app/repository"
	"go.uber.org/zap"
)

var emptyMap = json.RawMessage("{}")

// Projector turns decoded domain events into read-store mutations. It holds
// no state of its own; every event is applied independently.
type Projector struct {
	logger *zap.Logger
	repo   repository.DashboardLinkRepository
	filter *LinkFilter
}

// NewProjector returns a projector over the given repository. The filter is
// optional; when present, created links are added to it and clicks for ids it
// has never seen are dropped before touching the database.
func NewProjector(logger *zap.Logger, repo repository.DashboardLinkRepository, filter *LinkFilter) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{logger: logger, repo: repo, filter: filter}
}

// ApplyLifecycle dispatches one lifecycle event. Unknown or empty payloads
// are logged and dropped; storage failures propagate for redelivery.
func (p *Projector) ApplyLifecycle(ctx context.Context, event *model.LinkLifecycleEvent) error {
	switch event.PayloadCase() {
	case model.PayloadLinkCreated:
		return p.applyCreated(ctx, event.LinkCreated)
	case model.PayloadLinkUpdated:
		return p.applyUpdated(ctx, event.LinkUpdated)
	case model.PayloadLinkDeleted:
		return p.applyDeleted(ctx, event.LinkDeleted)
	case model.PayloadNotSet:
		p.logger.Warn("lifecycle event with no payload set, dropping")
		return nil
	default:
		p.logger.Warn("lifecycle event with unknown payload, dropping",
			zap.Stringer("payload_case", event.PayloadCase()))
		return nil
	}
}

func (p *Projector) applyCreated(ctx context.Context, ev *model.LinkCreated) error {
	p.logger.Info("creating dashboard view for link", zap.String("link_id", ev.LinkID))

	link := &model.DashboardLink{
		LinkID:          ev.LinkID,
		UserID:          ev.UserID,
		ShortURL:        ev.ShortURL,
		LongURL:         ev.LongURL,
		Title:           nil,
		IsActive:        ev.IsActive,
		CreatedAt:       ev.CreatedAt,
		UpdatedAt:       ev.CreatedAt,
		TotalClicks:     0,
		ClicksByCountry: emptyMap,
		ClicksByDevice:  emptyMap,
		ClicksByOs:      emptyMap,
	}

	if err := p.repo.Create(ctx, link); err != nil {
		return fmt.Errorf("create dashboard link %s: %w", ev.LinkID, err)
	}

	if p.filter != nil {
		p.filter.Add(ev.LinkID)
	}
	return nil
}

func (p *Projector) applyUpdated(ctx context.Context, ev *model.LinkUpdated) error {
	p.logger.Info("updating dashboard view for link", zap.String("link_id", ev.LinkID))

	update := model.LinkUpdate{
		LinkID:    ev.LinkID,
		LongURL:   ev.LongURL,
		Title:     ev.Title,
		IsActive:  ev.IsActive,
		UpdatedAt: ev.UpdatedAt,
	}

	if err := p.repo.Update(ctx, update); err != nil {
		return fmt.Errorf("update dashboard link %s: %w", ev.LinkID, err)
	}
	return nil
}

func (p *Projector) applyDeleted(ctx context.Context, ev *model.LinkDeleted) error {
	p.logger.Info("deleting dashboard view for link", zap.String("link_id", ev.LinkID))

	if err := p.repo.Delete(ctx, ev.LinkID); err != nil {
		return fmt.Errorf("delete dashboard link %s: %w", ev.LinkID, err)
	}
	return nil
}

// ApplyClick increments the link counters and then the city aggregate. The
// two writes are deliberately not one transaction; a failure in between
// leaves the counters ahead of the city stats until redelivery catches up.
func (p *Projector) ApplyClick(ctx context.Context, ev *model.EnrichedClickEvent) error {
	if p.filter != nil && !p.filter.MayContain(ev.LinkID) {
		p.logger.Debug("click for unknown link, dropping", zap.String("link_id", ev.LinkID))
		return nil
	}

	if err := p.repo.IncrementClickCounters(ctx, ev.LinkID, ev.CountryCode, ev.DeviceType, ev.OsName); err != nil {
		return fmt.Errorf("increment click counters for link %s: %w", ev.LinkID, err)
	}

	if err := p.repo.IncrementCityClicks(ctx, ev.LinkID, ev.CountryCode, ev.CityName, ev.CityLatitude, ev.CityLongitude); err != nil {
		return fmt.Errorf("increment city clicks for link %s: %w", ev.LinkID, err)
	}
	return nil
}
