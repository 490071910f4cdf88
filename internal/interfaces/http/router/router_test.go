package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

type idleService struct{}

func (idleService) RunCompleteSync(context.Context) (*integration.SyncCycleReport, error) {
	return nil, integration.ErrSyncInProgress
}

func (idleService) RunIncrementalSync(context.Context) (*integration.SyncCycleReport, error) {
	return &integration.SyncCycleReport{Mode: integration.SyncModeIncremental}, nil
}

func (idleService) SyncProducts(context.Context, bool) (*integration.SyncReport, error) {
	return &integration.SyncReport{}, nil
}

func (idleService) SyncInventory(context.Context, bool) (*integration.SyncReport, error) {
	return &integration.SyncReport{}, nil
}

func (idleService) SyncPrices(context.Context, bool) (*integration.SyncReport, error) {
	return &integration.SyncReport{}, nil
}

func (idleService) LastSyncTime() *time.Time                 { return nil }
func (idleService) LastReport() *integration.SyncCycleReport { return nil }
func (idleService) IsRunning() bool                          { return false }

type idleOrders struct{}

func (idleOrders) SyncOrders(context.Context) (*integration.OrderSyncReport, error) {
	return &integration.OrderSyncReport{Status: integration.SyncStatusSuccess}, nil
}

func (idleOrders) LastReport() *integration.OrderSyncReport { return nil }
func (idleOrders) IsRunning() bool                          { return false }

type recordingRegistrar struct {
	prefix string
}

func (r *recordingRegistrar) RegisterRoutes(rg *gin.RouterGroup) {
	r.prefix = rg.BasePath()
}

func TestRouter_Setup(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("default version", func(t *testing.T) {
		reg := &recordingRegistrar{}
		NewRouter(gin.New()).Register(reg).Setup()
		assert.Equal(t, "/api/v1", reg.prefix)
	})

	t.Run("custom version", func(t *testing.T) {
		reg := &recordingRegistrar{}
		NewRouter(gin.New(), WithAPIVersion("v2")).Register(reg).Setup()
		assert.Equal(t, "/api/v2", reg.prefix)
	})
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine(EngineConfig{
		ServiceName:    "catalog-syncd",
		ServiceVersion: "test",
		Mode:           gin.TestMode,
	}, zap.NewNop(), idleService{}, nil, WithOrderRoutes(idleOrders{}, nil))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/v1/sync/status", http.StatusOK},
		{http.MethodPost, "/api/v1/sync/incremental", http.StatusOK},
		{http.MethodPost, "/api/v1/sync/full", http.StatusConflict},
		{http.MethodPost, "/api/v1/sync/phases/prices", http.StatusOK},
		{http.MethodGet, "/api/v1/sync/full", http.StatusNotFound},
		{http.MethodGet, "/api/v1/orders/status", http.StatusOK},
		{http.MethodPost, "/api/v1/orders/sync", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestNewEngine_WithoutOrders(t *testing.T) {
	engine := NewEngine(EngineConfig{Mode: gin.TestMode}, zap.NewNop(), idleService{}, nil, WithOrderRoutes(nil, nil))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/sync", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
