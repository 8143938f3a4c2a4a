package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
)

type statView struct {
	Count   int64 `json:"count"`
	TotalUS int64 `json:"total_us"`
	MeanUS  int64 `json:"mean_us"`
}

func statsView(s *bridge.Statistics) map[string]statView {
	snap := s.Snapshot()
	out := make(map[string]statView, len(snap))
	for op, st := range snap {
		out[op] = statView{
			Count:   st.Count,
			TotalUS: st.Total.Microseconds(),
			MeanUS:  st.Mean().Microseconds(),
		}
	}
	return out
}

// Statistics returns the operation timings gathered so far.
func (h *Handlers) Statistics(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"statistics": statsView(bc.Statistics()),
	})
}

// ResetStatistics swaps in an empty buffer and answers with the previous
// contents.
func (h *Handlers) ResetStatistics(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	prev := bc.Statistics()
	bc.ResetStatistics()
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"statistics": statsView(prev),
	})
}

// Messages returns the captured console messages by channel.
func (h *Handlers) Messages(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": bc.Messages().Snapshot(),
	})
}

// ResetMessages swaps in an empty buffer and answers with the previous
// contents.
func (h *Handlers) ResetMessages(c *gin.Context) {
	bc, ok := h.context(c)
	if !ok {
		return
	}
	prev := bc.Messages()
	bc.ResetMessages()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": prev.Snapshot(),
	})
}
