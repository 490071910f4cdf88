package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/logger"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/interfaces/http/dto"
)

// SyncService is the sync engine as seen by the admin API
type SyncService interface {
	RunCompleteSync(ctx context.Context) (*integration.SyncCycleReport, error)
	RunIncrementalSync(ctx context.Context) (*integration.SyncCycleReport, error)
	SyncProducts(ctx context.Context, fullSync bool) (*integration.SyncReport, error)
	SyncInventory(ctx context.Context, fullSync bool) (*integration.SyncReport, error)
	SyncPrices(ctx context.Context, fullSync bool) (*integration.SyncReport, error)
	LastSyncTime() *time.Time
	LastReport() *integration.SyncCycleReport
	IsRunning() bool
}

// SchedulerStatus reports whether the periodic trigger is running
type SchedulerStatus interface {
	IsRunning() bool
}

// SyncHandler handles manual sync triggers and status queries
type SyncHandler struct {
	BaseHandler
	service   SyncService
	scheduler SchedulerStatus
}

// NewSyncHandler creates a new SyncHandler. scheduler may be nil.
func NewSyncHandler(service SyncService, scheduler SchedulerStatus) *SyncHandler {
	return &SyncHandler{
		service:   service,
		scheduler: scheduler,
	}
}

// RegisterRoutes registers the sync routes under rg
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	sync.GET("/status", h.Status)
	sync.POST("/full", h.RunFull)
	sync.POST("/incremental", h.RunIncremental)
	sync.POST("/phases/:phase", h.RunPhase)
}

// Status returns the watermark, the last cycle report and whether a run is in progress
func (h *SyncHandler) Status(c *gin.Context) {
	resp := dto.SyncStatusResponse{
		Running:      h.service.IsRunning(),
		LastSyncTime: h.service.LastSyncTime(),
		LastReport:   h.service.LastReport(),
	}
	if h.scheduler != nil {
		resp.Scheduler = &dto.SchedulerStatusResponse{Running: h.scheduler.IsRunning()}
	}
	h.Success(c, resp)
}

// RunFull runs a complete sync cycle and returns its report
func (h *SyncHandler) RunFull(c *gin.Context) {
	report, err := h.service.RunCompleteSync(runContext(c))
	h.respondRun(c, report, err)
}

// RunIncremental runs an incremental sync cycle and returns its report
func (h *SyncHandler) RunIncremental(c *gin.Context) {
	report, err := h.service.RunIncrementalSync(runContext(c))
	h.respondRun(c, report, err)
}

// RunPhase runs a single phase. The mode query parameter selects full
// (default) or incremental.
func (h *SyncHandler) RunPhase(c *gin.Context) {
	var uri dto.PhaseSyncURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.NotFound(c, "unknown sync phase")
		return
	}
	var req dto.PhaseSyncRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "mode must be full or incremental")
		return
	}

	ctx := runContext(c)
	var (
		report *integration.SyncReport
		err    error
	)
	switch integration.SyncPhase(uri.Phase) {
	case integration.SyncPhaseProducts:
		report, err = h.service.SyncProducts(ctx, req.IsFull())
	case integration.SyncPhaseInventory:
		report, err = h.service.SyncInventory(ctx, req.IsFull())
	default:
		report, err = h.service.SyncPrices(ctx, req.IsFull())
	}
	h.respondRun(c, report, err)
}

// respondRun maps a run result to a response. A report produced by an aborted
// run is not returned; the error is.
func (h *BaseHandler) respondRun(c *gin.Context, report any, err error) {
	if err == nil {
		h.Success(c, report)
		return
	}

	log := logger.GetGinLogger(c)
	switch {
	case errors.Is(err, integration.ErrSyncInProgress):
		h.ErrorWithCode(c, dto.ErrCodeSyncInProgress, "a sync run is already in progress")
	case errors.Is(err, integration.ErrCatalogFetchFailed), errors.Is(err, integration.ErrOrderFetchFailed):
		log.Warn("Manual sync aborted", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeUpstream, err.Error())
	default:
		log.Error("Manual sync failed", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeSyncFailed, err.Error())
	}
}

// runContext keeps the run going when the client disconnects
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
