package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/interfaces/http/dto"
)

// OrderService is the order push as seen by the admin API
type OrderService interface {
	SyncOrders(ctx context.Context) (*integration.OrderSyncReport, error)
	LastReport() *integration.OrderSyncReport
	IsRunning() bool
}

// OrderHandler handles manual order pushes and status queries
type OrderHandler struct {
	BaseHandler
	service   OrderService
	scheduler SchedulerStatus
}

// NewOrderHandler creates a new OrderHandler. scheduler may be nil.
func NewOrderHandler(service OrderService, scheduler SchedulerStatus) *OrderHandler {
	return &OrderHandler{
		service:   service,
		scheduler: scheduler,
	}
}

// RegisterRoutes registers the order routes under rg
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	orders.GET("/status", h.Status)
	orders.POST("/sync", h.Sync)
}

// Status returns the last order push report and whether a push is in progress
func (h *OrderHandler) Status(c *gin.Context) {
	resp := dto.OrderSyncStatusResponse{
		Running:    h.service.IsRunning(),
		LastReport: h.service.LastReport(),
	}
	if h.scheduler != nil {
		resp.Scheduler = &dto.SchedulerStatusResponse{Running: h.scheduler.IsRunning()}
	}
	h.Success(c, resp)
}

// Sync pushes pending orders and returns the run report
func (h *OrderHandler) Sync(c *gin.Context) {
	report, err := h.service.SyncOrders(runContext(c))
	h.respondRun(c, report, err)
}
