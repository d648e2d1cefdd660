package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sabyrkhan/cafe-pos/internal/service"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	sales  service.SalesService
	logger *zap.Logger
}

func NewDashboardHandler(sales service.SalesService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		sales:  sales,
		logger: logger,
	}
}

// parseDay reads ?date=YYYY-MM-DD, defaulting to today. The date is
// interpreted in the viewer's zone by the sales engine, not here.
func parseDay(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

// parseRange reads ?from=YYYY-MM-DD&to=YYYY-MM-DD, defaulting to today's
// single day. The window is half-open: [from, to+1d).
func parseRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.AddDate(0, 0, 1)
	}

	return from, to, nil
}

func (h *DashboardHandler) DailySummary(c *fiber.Ctx) error {
	day, err := parseDay(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid date, expected YYYY-MM-DD"})
	}

	summary, err := h.sales.DailySummary(c.UserContext(), day, c.Query("tz"))
	if err != nil {
		mylogger.Error(c.UserContext(), h.logger, "daily summary failed", zap.Error(err))
		return writeServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *DashboardHandler) HourlyRevenue(c *fiber.Ctx) error {
	day, err := parseDay(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid date, expected YYYY-MM-DD"})
	}

	points, err := h.sales.HourlyRevenue(c.UserContext(), day, c.Query("tz"))
	if err != nil {
		mylogger.Error(c.UserContext(), h.logger, "hourly revenue failed", zap.Error(err))
		return writeServiceError(c, err)
	}

	return c.JSON(fiber.Map{"hours": points})
}

func (h *DashboardHandler) TopProducts(c *fiber.Ctx) error {
	from, to, err := parseRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid range, expected YYYY-MM-DD"})
	}

	limit := service.DefaultTopProducts
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid limit"})
		}
		limit = parsed
	}

	products, err := h.sales.TopProducts(c.UserContext(), from, to, limit)
	if err != nil {
		mylogger.Error(c.UserContext(), h.logger, "top products failed", zap.Error(err))
		return writeServiceError(c, err)
	}

	return c.JSON(fiber.Map{"products": products})
}

func (h *DashboardHandler) OrdersByStatus(c *fiber.Ctx) error {
	from, to, err := parseRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid range, expected YYYY-MM-DD"})
	}

	counts, err := h.sales.OrdersByStatus(c.UserContext(), from, to)
	if err != nil {
		mylogger.Error(c.UserContext(), h.logger, "orders by status failed", zap.Error(err))
		return writeServiceError(c, err)
	}

	return c.JSON(fiber.Map{"statuses": counts})
}

func (h *DashboardHandler) PaymentBreakdown(c *fiber.Ctx) error {
	from, to, err := parseRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid range, expected YYYY-MM-DD"})
	}

	breakdown, err := h.sales.PaymentBreakdown(c.UserContext(), from, to)
	if err != nil {
		mylogger.Error(c.UserContext(), h.logger, "payment breakdown failed", zap.Error(err))
		return writeServiceError(c, err)
	}

	return c.JSON(fiber.Map{"payments": breakdown})
}
