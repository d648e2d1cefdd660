package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sabyrkhan/cafe-pos/internal/transport/http/handler"
	"github.com/sabyrkhan/cafe-pos/internal/transport/http/middleware"
)

type Handlers struct {
	Order     *handler.OrderHandler
	Dashboard *handler.DashboardHandler
	ShortLink *handler.ShortLinkHandler
	WS        *handler.WSHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers, jwtSecret string) {
	// Public: short link redirect needs no auth, it lives on receipts.
	app.Get("/l/:token", h.ShortLink.Redirect)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/dashboard", websocket.New(h.WS.Dashboard))

	api := app.Group("/api", middleware.NewAuthMiddleware(jwtSecret))

	orders := api.Group("/orders")
	orders.Post("", h.Order.Create)
	orders.Get("", h.Order.List)
	orders.Get("/:id", h.Order.FindByID)
	orders.Put("/:id", h.Order.Update)
	orders.Patch("/:id/status", h.Order.AdvanceStatus)
	orders.Post("/:id/void", h.Order.Void)
	orders.Post("/:id/payment", h.Order.SettlePayment)

	dashboard := api.Group("/dashboard")
	dashboard.Get("/summary", h.Dashboard.DailySummary)
	dashboard.Get("/hourly", h.Dashboard.HourlyRevenue)
	dashboard.Get("/top-products", h.Dashboard.TopProducts)
	dashboard.Get("/orders-by-status", h.Dashboard.OrdersByStatus)
	dashboard.Get("/payments", h.Dashboard.PaymentBreakdown)

	api.Post("/links", h.ShortLink.Generate)
	api.Get("/loyalty/:customerId", h.ShortLink.Balance)
}
