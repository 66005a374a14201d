package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linkboard/dashboard/internal/app/metric"
	"github.com/linkboard/dashboard/internal/app/model"
	"github.com/linkboard/dashboard/internal/app/repository"
	"github.com/linkboard/dashboard/internal/app/service"
	"go.uber.org/zap"
)

// UserIDHeader carries the pre-authenticated caller identity. The gateway in
// front of this service sets it; the value is treated as opaque here.
const UserIDHeader = "X-User-Id"

// DashboardDeps groups dependencies required by dashboard handlers.
type DashboardDeps struct {
	Logger    *zap.Logger
	Dashboard service.DashboardService
}

// DashboardHandler implements the dashboard query endpoints.
type DashboardHandler struct {
	logger    *zap.Logger
	dashboard service.DashboardService
}

// NewDashboardHandler creates a dashboard handler with the provided
// dependencies.
func NewDashboardHandler(deps DashboardDeps) *DashboardHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{
		logger:    logger,
		dashboard: deps.Dashboard,
	}
}

// Register wires dashboard routes onto the provided router.
func (h *DashboardHandler) Register(router fiber.Router) {
	api := router.Group("/api/dashboard")
	{
		api.Get("/links", h.ListLinks)
		api.Get("/links/:linkId", h.GetLinkDetail)
		api.Get("/summary", h.UserClickSummary)
	}
}

// LinkSummaryResponse is one row of the paginated listing.
type LinkSummaryResponse struct {
	ID          int64     `json:"id"`
	LinkID      string    `json:"link_id"`
	UserID      string    `json:"user_id"`
	ShortURL    string    `json:"short_url"`
	LongURL     string    `json:"long_url"`
	Title       *string   `json:"title"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TotalClicks int64     `json:"total_clicks"`
}

// PagedLinksResponse is the offset-paginated listing envelope.
type PagedLinksResponse struct {
	Content       []LinkSummaryResponse `json:"content"`
	Page          int                   `json:"page"`
	Size          int                   `json:"size"`
	TotalElements int64                 `json:"total_elements"`
	TotalPages    int                   `json:"total_pages"`
}

// LinkDetailResponse is the single-link view with click breakdowns.
type LinkDetailResponse struct {
	LinkID          string         `json:"link_id"`
	ShortURL        string         `json:"short_url"`
	LongURL         string         `json:"long_url"`
	Title           *string        `json:"title"`
	IsActive        bool           `json:"is_active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	TotalClicks     int64          `json:"total_clicks"`
	ClicksByCountry []metric.Entry `json:"clicks_by_country"`
	ClicksByDevice  []metric.Entry `json:"clicks_by_device"`
	ClicksByOs      []metric.Entry `json:"clicks_by_os"`
}

// ClickSummaryResponse is the tenant-wide rollup.
type ClickSummaryResponse struct {
	TotalClicks     int64          `json:"total_clicks"`
	ClicksByCountry []metric.Entry `json:"clicks_by_country"`
	ClicksByDevice  []metric.Entry `json:"clicks_by_device"`
	ClicksByOs      []metric.Entry `json:"clicks_by_os"`
}

// ListLinks handles GET /api/dashboard/links.
func (h *DashboardHandler) ListLinks(c *fiber.Ctx) error {
	userID := c.Get(UserIDHeader)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing " + UserIDHeader + " header",
		})
	}

	req := repository.PageRequest{
		Page: c.QueryInt("page", 0),
		Size: c.QueryInt("size", 0),
		Sort: parseSortParams(c),
	}

	page, err := h.dashboard.ListLinks(c.Context(), userID, req)
	if err != nil {
		h.logger.Error("list links failed", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	content := make([]LinkSummaryResponse, 0, len(page.Items))
	for _, link := range page.Items {
		content = append(content, toSummaryResponse(link))
	}

	return c.JSON(PagedLinksResponse{
		Content:       content,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
	})
}

// GetLinkDetail handles GET /api/dashboard/links/:linkId.
func (h *DashboardHandler) GetLinkDetail(c *fiber.Ctx) error {
	userID := c.Get(UserIDHeader)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing " + UserIDHeader + " header",
		})
	}

	linkID := c.Params("linkId")

	detail, err := h.dashboard.GetLinkDetail(c.Context(), userID, linkID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("get link detail failed",
			zap.String("user_id", userID),
			zap.String("link_id", linkID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load link",
		})
	}

	return c.JSON(LinkDetailResponse{
		LinkID:          detail.LinkID,
		ShortURL:        detail.ShortURL,
		LongURL:         detail.LongURL,
		Title:           detail.Title,
		IsActive:        detail.IsActive,
		CreatedAt:       detail.CreatedAt,
		UpdatedAt:       detail.UpdatedAt,
		TotalClicks:     detail.TotalClicks,
		ClicksByCountry: detail.ClicksByCountry,
		ClicksByDevice:  detail.ClicksByDevice,
		ClicksByOs:      detail.ClicksByOs,
	})
}

// UserClickSummary handles GET /api/dashboard/summary.
func (h *DashboardHandler) UserClickSummary(c *fiber.Ctx) error {
	userID := c.Get(UserIDHeader)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing " + UserIDHeader + " header",
		})
	}

	summary, err := h.dashboard.UserClickSummary(c.Context(), userID)
	if err != nil {
		h.logger.Error("click summary failed", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to build summary",
		})
	}

	return c.JSON(ClickSummaryResponse{
		TotalClicks:     summary.TotalClicks,
		ClicksByCountry: summary.ClicksByCountry,
		ClicksByDevice:  summary.ClicksByDevice,
		ClicksByOs:      summary.ClicksByOs,
	})
}

// parseSortParams reads repeated sort=field,direction query parameters.
// Direction defaults to ascending; validation of the field itself happens
// against the repository allow-list.
func parseSortParams(c *fiber.Ctx) []repository.SortOrder {
	raw := c.Request().URI().QueryArgs().PeekMulti("sort")
	orders := make([]repository.SortOrder, 0, len(raw))
	for _, value := range raw {
		parts := strings.SplitN(string(value), ",", 2)
		field := strings.TrimSpace(parts[0])
		if field == "" {
			continue
		}
		direction := repository.SortAsc
		if len(parts) == 2 && strings.EqualFold(strings.TrimSpace(parts[1]), "desc") {
			direction = repository.SortDesc
		}
		orders = append(orders, repository.SortOrder{Field: field, Direction: direction})
	}
	return orders
}

func toSummaryResponse(link model.DashboardLink) LinkSummaryResponse {
	return LinkSummaryResponse{
		ID:          link.ID,
		LinkID:      link.LinkID,
		UserID:      link.UserID,
		ShortURL:    link.ShortURL,
		LongURL:     link.LongURL,
		Title:       link.Title,
		IsActive:    link.IsActive,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
		TotalClicks: link.TotalClicks,
	}
}
