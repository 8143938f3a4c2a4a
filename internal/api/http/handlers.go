package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
	"github.com/GriffinCanCode/scriptbridge/internal/domain/contexts"
	"github.com/GriffinCanCode/scriptbridge/internal/infrastructure/monitoring"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *contexts.Manager
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set. metrics may be nil.
func NewHandlers(manager *contexts.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		manager: manager,
		metrics: metrics,
		logger:  logger,
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)

	g := r.Group("/contexts")
	g.GET("", h.ListContexts)
	g.POST("", h.CreateContext)
	g.GET("/:id", h.DescribeContext)
	g.DELETE("/:id", h.DestroyContext)

	g.POST("/:id/eval", h.Eval)
	g.GET("/:id/get", h.Get)
	g.GET("/:id/exists", h.Exists)
	g.GET("/:id/typeof", h.TypeOf)
	g.GET("/:id/typeflags", h.TypeFlags)
	g.POST("/:id/set", h.Set)
	g.POST("/:id/instanceof", h.InstanceOf)
	g.POST("/:id/dispatch", h.Dispatch)
	g.POST("/:id/gc", h.GarbageCollect)

	g.GET("/:id/stats", h.Statistics)
	g.DELETE("/:id/stats", h.ResetStatistics)
	g.GET("/:id/messages", h.Messages)
	g.DELETE("/:id/messages", h.ResetMessages)
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"contexts": h.manager.Len(),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// context resolves the :id parameter, answering 404 itself when it is
// unknown.
func (h *Handlers) context(c *gin.Context) (*bridge.Context, bool) {
	bc, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return bc, true
}

// path reads the required ?path= query parameter.
func path(c *gin.Context) (string, bool) {
	p := c.Query("path")
	if p == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "query parameter path is required",
		})
		return "", false
	}
	return p, true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request: " + err.Error(),
		})
		return false
	}
	return true
}
