package api

import (
	"net/http"

	"github.com/antermbg/livetrack/cli/tracker/feed"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	Latest *feed.Latest
}

func NewHandler(latest *feed.Latest) *Handler {
	return &Handler{Latest: latest}
}

// GetOrderLocation returns the last known driver position for one order.
func (h *Handler) GetOrderLocation(c *gin.Context) {
	orderID := c.Param("order_id")

	ev, ok := h.Latest.Get(orderID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no location received for this order"})
		return
	}

	c.JSON(http.StatusOK, ev)
}

// GetLocations returns the last known position of every tracked order.
func (h *Handler) GetLocations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.Latest.Snapshot()})
}
