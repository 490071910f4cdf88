package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/infrastructure/logger"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/interfaces/http/handler"
	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig holds the settings of the admin API engine
type EngineConfig struct {
	ServiceName    string
	ServiceVersion string
	Tracing        bool
	Mode           string
}

// EngineOption adds optional route groups to the admin API engine
type EngineOption func(*Router)

// WithOrderRoutes registers the order push routes. scheduler may be nil.
func WithOrderRoutes(service handler.OrderService, scheduler handler.SchedulerStatus) EngineOption {
	return func(r *Router) {
		if service != nil {
			r.Register(handler.NewOrderHandler(service, scheduler))
		}
	}
}

// NewEngine builds the admin API engine: request IDs, tracing, request
// logging and panic recovery, the health check and the sync routes.
// scheduler may be nil.
func NewEngine(cfg EngineConfig, log *zap.Logger, service handler.SyncService, scheduler handler.SchedulerStatus, opts ...EngineOption) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.Tracing,
	})...)
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))

	health := handler.NewHealthHandler(cfg.ServiceName, cfg.ServiceVersion)
	engine.GET("/healthz", health.Healthz)

	routes := NewRouter(engine).Register(handler.NewSyncHandler(service, scheduler))
	for _, opt := range opts {
		opt(routes)
	}
	routes.Setup()

	return engine
}
