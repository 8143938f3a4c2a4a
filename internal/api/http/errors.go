package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
	"github.com/GriffinCanCode/scriptbridge/internal/domain/contexts"
	"github.com/GriffinCanCode/scriptbridge/internal/marshal"
)

// statusOf maps an error onto an HTTP status.
func statusOf(err error) int {
	var merr *marshal.Error
	switch {
	case errors.Is(err, contexts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contexts.ErrLimit):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrConfig), errors.Is(err, bridge.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrDestroyed):
		return http.StatusGone
	case errors.Is(err, bridge.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, bridge.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, bridge.ErrNotFunction),
		errors.Is(err, bridge.ErrSyntax),
		errors.Is(err, bridge.ErrException),
		errors.As(err, &merr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes the error response for err.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusOf(err)
	body := gin.H{
		"success": false,
		"error":   err.Error(),
	}

	var eerr *bridge.EvalError
	if errors.As(err, &eerr) {
		body["error"] = eerr.Message
		body["file"] = eerr.File
		if eerr.Line > 0 {
			body["line"] = eerr.Line
			body["column"] = eerr.Column
		}
		if eerr.Source != "" {
			body["source"] = eerr.Source
		}
	}
	var merr *marshal.Error
	if errors.As(err, &merr) {
		body["at"] = merr.Path
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("context_id", c.Param("id")),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, body)
}
