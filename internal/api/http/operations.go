package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/scriptbridge/internal/marshal"
)

// Eval runs a script in the context.
func (h *Handlers) Eval(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
		File string `json:"file"`
	}
	if !bind(c, &req) {
		return
	}

	result, err := bc.Eval(c.Request.Context(), req.Code, req.File)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  marshal.Portable(result),
	})
}

// Get returns the value at ?path=.
func (h *Handlers) Get(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	p, ok := path(c)
	if !ok {
		return
	}

	v, err := bc.Get(p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    p,
		"value":   marshal.Portable(v),
	})
}

// Set stores a JSON value at a path.
func (h *Handlers) Set(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	var req struct {
		Path  string `json:"path" binding:"required"`
		Value any    `json:"value"`
	}
	if !bind(c, &req) {
		return
	}

	if err := bc.Set(req.Path, req.Value); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    req.Path,
	})
}

// Exists reports whether ?path= resolves.
func (h *Handlers) Exists(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	p, ok := path(c)
	if !ok {
		return
	}

	found, err := bc.Exists(p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    p,
		"exists":  found,
	})
}

// TypeOf names the type at ?path=.
func (h *Handlers) TypeOf(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	p, ok := path(c)
	if !ok {
		return
	}

	name, err := bc.TypeOf(p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    p,
		"type":    name,
	})
}

// TypeFlags returns the kind mask at ?path= both as a number and spelled
// out.
func (h *Handlers) TypeFlags(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	p, ok := path(c)
	if !ok {
		return
	}

	k, err := bc.TypeFlags(p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"path":    p,
		"flags":   uint64(k),
		"kinds":   k.String(),
	})
}

// InstanceOf checks an object against a constructor, both given by path.
func (h *Handlers) InstanceOf(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	var req struct {
		Object      string `json:"object" binding:"required"`
		Constructor string `json:"constructor" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}

	is, err := bc.InstanceOf(req.Object, req.Constructor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"instanceof": is,
	})
}

// Dispatch calls a global function and drains the event loop.
func (h *Handlers) Dispatch(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}

	result, err := bc.DispatchFunction(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  marshal.Portable(result),
	})
}

// GarbageCollect forces a collection cycle.
func (h *Handlers) GarbageCollect(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	n, err := bc.RunGarbageCollection()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"collections": n,
	})
}
