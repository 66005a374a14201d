package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linkboard/dashboard/internal/app/metric"
	"github.com/linkboard/dashboard/internal/app/model"
	"github.com/linkboard/dashboard/internal/app/repository"
	"go.uber.org/zap"
)

type mockLinkRepository struct {
	createFn        func(ctx context.Context, link *model.DashboardLink) error
	updateFn        func(ctx context.Context, update model.LinkUpdate) error
	deleteFn        func(ctx context.Context, linkID string) error
	incrCountersFn  func(ctx context.Context, linkID, countryCode, deviceType, osName string) error
	incrCityFn      func(ctx context.Context, linkID, countryCode, cityName, latitude, longitude string) error
	findByUserFn    func(ctx context.Context, userID string, req repository.PageRequest) (*repository.LinkPage, error)
	findDetailFn    func(ctx context.Context, userID, linkID string) (*model.DashboardLink, error)
	findBreakdownFn func(ctx context.Context, userID string) ([]model.DashboardLink, error)
}

func (m *mockLinkRepository) Create(ctx context.Context, link *model.DashboardLink) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) Update(ctx context.Context, update model.LinkUpdate) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, update)
	}
	return nil
}

func (m *mockLinkRepository) Delete(ctx context.Context, linkID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, linkID)
	}
	return nil
}

func (m *mockLinkRepository) IncrementClickCounters(ctx context.Context, linkID, countryCode, deviceType, osName string) error {
	if m.incrCountersFn != nil {
		return m.incrCountersFn(ctx, linkID, countryCode, deviceType, osName)
	}
	return nil
}

func (m *mockLinkRepository) IncrementCityClicks(ctx context.Context, linkID, countryCode, cityName, latitude, longitude string) error {
	if m.incrCityFn != nil {
		return m.incrCityFn(ctx, linkID, countryCode, cityName, latitude, longitude)
	}
	return nil
}

func (m *mockLinkRepository) FindByUser(ctx context.Context, userID string, req repository.PageRequest) (*repository.LinkPage, error) {
	if m.findByUserFn != nil {
		return m.findByUserFn(ctx, userID, req)
	}
	return nil, nil
}

func (m *mockLinkRepository) FindDetail(ctx context.Context, userID, linkID string) (*model.DashboardLink, error) {
	if m.findDetailFn != nil {
		return m.findDetailFn(ctx, userID, linkID)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) FindBreakdownsByUser(ctx context.Context, userID string) ([]model.DashboardLink, error) {
	if m.findBreakdownFn != nil {
		return m.findBreakdownFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLinkRepository) AllLinkIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestProjector_LinkCreated(t *testing.T) {
	createdAt := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	var got *model.DashboardLink
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.DashboardLink) error {
			got = link
			return nil
		},
	}

	p := NewProjector(zap.NewNop(), repo, nil)
	err := p.ApplyLifecycle(context.Background(), &model.LinkLifecycleEvent{
		LinkCreated: &model.LinkCreated{
			LinkID:    "link-1",
			UserID:    "user-1",
			ShortURL:  "https://sho.rt/abc",
			LongURL:   "https://example.com/page",
			IsActive:  true,
			CreatedAt: createdAt,
		},
	})
	if err != nil {
		t.Fatalf("ApplyLifecycle returned error: %v", err)
	}

	if got == nil {
		t.Fatal("expected Create to be called")
	}
	if got.LinkID != "link-1" || got.UserID != "user-1" {
		t.Fatalf("unexpected keys: %+v", got)
	}
	if got.Title != nil {
		t.Fatalf("expected absent title on creation, got %q", *got.Title)
	}
	if got.TotalClicks != 0 {
		t.Fatalf("expected zero clicks, got %d", got.TotalClicks)
	}
	if !got.CreatedAt.Equal(createdAt) || !got.UpdatedAt.Equal(createdAt) {
		t.Fatalf("expected created/updated = event time, got %v / %v", got.CreatedAt, got.UpdatedAt)
	}
	for _, raw := range [][]byte{got.ClicksByCountry, got.ClicksByDevice, got.ClicksByOs} {
		m, err := metric.Decode(raw)
		if err != nil || len(m) != 0 {
			t.Fatalf("expected empty breakdown map, got %s (%v)", raw, err)
		}
	}
}

func TestProjector_LinkUpdated(t *testing.T) {
	updatedAt := time.Date(2026, 5, 5, 9, 30, 0, 0, time.UTC)
	title := "My link"

	var got model.LinkUpdate
	repo := &mockLinkRepository{
		updateFn: func(ctx context.Context, update model.LinkUpdate) error {
			got = update
			return nil
		},
	}

	p := NewProjector(zap.NewNop(), repo, nil)
	err := p.ApplyLifecycle(context.Background(), &model.LinkLifecycleEvent{
		LinkUpdated: &model.LinkUpdated{
			LinkID:    "link-1",
			LongURL:   "https://example.com/new",
			Title:     &title,
			IsActive:  false,
			UpdatedAt: updatedAt,
		},
	})
	if err != nil {
		t.Fatalf("ApplyLifecycle returned error: %v", err)
	}

	if got.LinkID != "link-1" || got.LongURL != "https://example.com/new" {
		t.Fatalf("unexpected update: %+v", got)
	}
	if got.Title == nil || *got.Title != title {
		t.Fatalf("expected title %q, got %v", title, got.Title)
	}
	if !got.UpdatedAt.Equal(updatedAt) {
		t.Fatalf("expected updated_at %v, got %v", updatedAt, got.UpdatedAt)
	}
}

func TestProjector_LinkDeleted(t *testing.T) {
	var deleted string
	repo := &mockLinkRepository{
		deleteFn: func(ctx context.Context, linkID string) error {
			deleted = linkID
			return nil
		},
	}

	p := NewProjector(zap.NewNop(), repo, nil)
	err := p.ApplyLifecycle(context.Background(), &model.LinkLifecycleEvent{
		LinkDeleted: &model.LinkDeleted{LinkID: "link-9"},
	})
	if err != nil {
		t.Fatalf("ApplyLifecycle returned error: %v", err)
	}
	if deleted != "link-9" {
		t.Fatalf("expected delete of link-9, got %q", deleted)
	}
}

func TestProjector_EmptyPayloadDroppedWithoutError(t *testing.T) {
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.DashboardLink) error {
			t.Fatal("create must not be called")
			return nil
		},
		updateFn: func(ctx context.Context, update model.LinkUpdate) error {
			t.Fatal("update must not be called")
			return nil
		},
		deleteFn: func(ctx context.Context, linkID string) error {
			t.Fatal("delete must not be called")
			return nil
		},
	}

	p := NewProjector(zap.NewNop(), repo, nil)
	if err := p.ApplyLifecycle(context.Background(), &model.LinkLifecycleEvent{}); err != nil {
		t.Fatalf("empty payload must not error, got %v", err)
	}
}

func TestProjector_StorageErrorPropagates(t *testing.T) {
	dbErr := errors.New("connection refused")
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.DashboardLink) error {
			return dbErr
		},
	}

	p := NewProjector(zap.NewNop(), repo, nil)
	err := p.ApplyLifecycle(context.Background(), &model.LinkLifecycleEvent{
		LinkCreated: &model.LinkCreated{LinkID: "link-1"},
	})
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected storage error to propagate, got %v", err)
	}
}

func TestProjector_ApplyClickCallsBothIncrements(t *testing.T) {
	var calls []string
	repo := &mockLinkRepository{
		incrCountersFn: func(ctx context.Context, linkID, countryCode, deviceType, osName string) error {
			calls = append(calls, "counters:"+linkID+":"+countryCode+":"+deviceType+":"+osName)
			return nil
		},
		incrCityFn: func(ctx context.Context, linkID, countryCode, cityName, latitude, longitude string) error {
			calls = append(calls, "city:"+linkID+":"+cityName+":"+latitude+":"+longitude)
			return nil
		},
	}

	p := NewProjector(zap.NewNop(), repo, nil)
	err := p.ApplyClick(context.Background(), &model.EnrichedClickEvent{
		LinkID:        "link-1",
		CountryCode:   "PL",
		DeviceType:    "Phone",
		OsName:        "iOS",
		CityName:      "Warsaw",
		CityLatitude:  "52.23",
		CityLongitude: "21.01",
	})
	if err != nil {
		t.Fatalf("ApplyClick returned error: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("expected both increments, got %v", calls)
	}
	if calls[0] != "counters:link-1:PL:Phone:iOS" {
		t.Fatalf("counters must be first: %v", calls)
	}
	if calls[1] != "city:link-1:Warsaw:52.23:21.01" {
		t.Fatalf("unexpected city call: %v", calls)
	}
}

func TestProjector_ApplyClickStopsAfterCounterFailure(t *testing.T) {
	dbErr := errors.New("deadlock")
	cityCalled := false
	repo := &mockLinkRepository{
		incrCountersFn: func(ctx context.Context, linkID, countryCode, deviceType, osName string) error {
			return dbErr
		},
		incrCityFn: func(ctx context.Context, linkID, countryCode, cityName, latitude, longitude string) error {
			cityCalled = true
			return nil
		},
	}

	p := NewProjector(zap.NewNop(), repo, nil)
	err := p.ApplyClick(context.Background(), &model.EnrichedClickEvent{LinkID: "link-1"})
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected counter error to propagate, got %v", err)
	}
	if cityCalled {
		t.Fatal("city increment must not run after counter failure")
	}
}

func TestProjector_ClickForUnseenLinkSkipsRepository(t *testing.T) {
	repo := &mockLinkRepository{
		incrCountersFn: func(ctx context.Context, linkID, countryCode, deviceType, osName string) error {
			t.Fatal("repository must not be hit for a filtered-out link")
			return nil
		},
	}

	filter := NewLinkFilter(100, 0.01)
	filter.Add("known-link")

	p := NewProjector(zap.NewNop(), repo, filter)
	err := p.ApplyClick(context.Background(), &model.EnrichedClickEvent{LinkID: "never-created"})
	if err != nil {
		t.Fatalf("filtered click must not error, got %v", err)
	}
}

func TestProjector_DuplicateCreateKeepsFirstWrite(t *testing.T) {
	repo := newMemoryRepository()
	p := NewProjector(zap.NewNop(), repo, nil)
	ctx := context.Background()

	first := &model.LinkLifecycleEvent{LinkCreated: &model.LinkCreated{
		LinkID:    "link-1",
		UserID:    "user-1",
		ShortURL:  "https://sho.rt/first",
		LongURL:   "https://example.com/first",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	duplicate := &model.LinkLifecycleEvent{LinkCreated: &model.LinkCreated{
		LinkID:    "link-1",
		UserID:    "user-2",
		ShortURL:  "https://sho.rt/second",
		LongURL:   "https://example.com/second",
		CreatedAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
	}}

	if err := p.ApplyLifecycle(ctx, first); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := p.ApplyLifecycle(ctx, duplicate); err != nil {
		t.Fatalf("redelivered create must not error: %v", err)
	}

	link, err := repo.FindDetail(ctx, "user-1", "link-1")
	if err != nil {
		t.Fatalf("FindDetail failed: %v", err)
	}
	if link.ShortURL != "https://sho.rt/first" {
		t.Fatalf("duplicate create overwrote the row: %+v", link)
	}
}

func TestProjector_CounterInvariantAfterNClicks(t *testing.T) {
	repo := newMemoryRepository()
	p := NewProjector(zap.NewNop(), repo, nil)
	ctx := context.Background()

	if err := p.ApplyLifecycle(ctx, &model.LinkLifecycleEvent{LinkCreated: &model.LinkCreated{
		LinkID: "link-1", UserID: "user-1", CreatedAt: time.Now().UTC(),
	}}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	clicks := []model.EnrichedClickEvent{
		{LinkID: "link-1", CountryCode: "US", DeviceType: "Desktop", OsName: "Windows", CityName: "Austin"},
		{LinkID: "link-1", CountryCode: "PL", DeviceType: "Phone", OsName: "iOS", CityName: "Warsaw"},
		{LinkID: "link-1", CountryCode: "US", DeviceType: "Phone", OsName: "Android", CityName: "Austin"},
	}
	for i := range clicks {
		if err := p.ApplyClick(ctx, &clicks[i]); err != nil {
			t.Fatalf("click %d failed: %v", i, err)
		}
	}

	link, err := repo.FindDetail(ctx, "user-1", "link-1")
	if err != nil {
		t.Fatalf("FindDetail failed: %v", err)
	}
	if link.TotalClicks != int64(len(clicks)) {
		t.Fatalf("expected %d total clicks, got %d", len(clicks), link.TotalClicks)
	}

	for name, raw := range map[string][]byte{
		"country": link.ClicksByCountry,
		"device":  link.ClicksByDevice,
		"os":      link.ClicksByOs,
	} {
		m, err := metric.Decode(raw)
		if err != nil {
			t.Fatalf("decode %s map: %v", name, err)
		}
		var sum int64
		for _, v := range m {
			sum += v
		}
		if sum != link.TotalClicks {
			t.Fatalf("%s map sums to %d, total is %d", name, sum, link.TotalClicks)
		}
	}

	if stat := repo.cityStat("link-1", "US", "Austin"); stat == nil || stat.Clicks != 2 {
		t.Fatalf("expected Austin city stat at 2, got %+v", stat)
	}
}

func TestProjector_UpdateAndDeleteOfMissingLinkAreNoOps(t *testing.T) {
	repo := newMemoryRepository()
	p := NewProjector(zap.NewNop(), repo, nil)
	ctx := context.Background()

	if err := p.ApplyLifecycle(ctx, &model.LinkLifecycleEvent{LinkUpdated: &model.LinkUpdated{
		LinkID: "ghost", UpdatedAt: time.Now().UTC(),
	}}); err != nil {
		t.Fatalf("update of missing link must not error: %v", err)
	}
	if err := p.ApplyLifecycle(ctx, &model.LinkLifecycleEvent{LinkDeleted: &model.LinkDeleted{
		LinkID: "ghost",
	}}); err != nil {
		t.Fatalf("delete of missing link must not error: %v", err)
	}

	ids, _ := repo.AllLinkIDs(ctx)
	if len(ids) != 0 {
		t.Fatalf("no rows expected, got %v", ids)
	}
}
