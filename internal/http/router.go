// Package http registers the service's HTTP routes.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/http/handlers"
	"dispatch/internal/http/middleware"
	"dispatch/internal/modules/dispatch"
	"dispatch/internal/modules/location"
	"dispatch/internal/modules/order"
)

func NewRouter(
	orderService *order.Service,
	dispatchService *dispatch.Service,
	locationService *location.Service,
	queue *location.WriteBackQueue,
	log *slog.Logger,
) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	locationHandler := handlers.NewLocationHandler(locationService)
	r.PUT("/api/couriers/:id/location", locationHandler.Report)
	r.DELETE("/api/couriers/:id/location", locationHandler.Offline)

	orderHandler := handlers.NewOrderHandler(orderService)
	r.POST("/api/orders", orderHandler.Create)
	r.GET("/api/orders/:id", orderHandler.Get)
	r.POST("/api/orders/:id/cancel", orderHandler.Cancel)

	dispatchHandler := handlers.NewDispatchHandler(dispatchService, queue)
	r.POST("/api/orders/:id/dispatch", dispatchHandler.Dispatch)
	r.POST("/api/orders/:id/offer-response", dispatchHandler.OfferResponse)
	r.GET("/api/dispatch/queue-stats", dispatchHandler.QueueStats)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
