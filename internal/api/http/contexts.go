package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListContexts lists all live contexts
func (h *Handlers) ListContexts(c *gin.Context) {
	infos := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"contexts": infos,
		"count":    len(infos),
	})
}

// CreateContext creates a context from an optional option bag body.
func (h *Handlers) CreateContext(c *gin.Context) {
	// The option bag is optional; an empty body takes the server defaults.
	var options map[string]any
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&options); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid request: " + err.Error(),
			})
			return
		}
	}

	bc, err := h.manager.Create(options)
	if err != nil {
		h.fail(c, err)
		return
	}
	info, err := h.manager.Describe(bc.ID())
	if err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Debug("context created over http", zap.String("context_id", bc.ID()))
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"context": info,
	})
}

// DescribeContext returns one context's settings.
func (h *Handlers) DescribeContext(c *gin.Context) {
	info, err := h.manager.Describe(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"context": info,
	})
}

// DestroyContext destroys a context
func (h *Handlers) DestroyContext(c *gin.Context) {
	id := c.Param("id")
	if err := h.manager.Destroy(id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      id,
	})
}
