package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/modules/dispatch"
	"dispatch/internal/modules/location"
	"dispatch/internal/types"
)

type DispatchHandler struct {
	dispatch *dispatch.Service
	queue    *location.WriteBackQueue
}

func NewDispatchHandler(svc *dispatch.Service, queue *location.WriteBackQueue) *DispatchHandler {
	return &DispatchHandler{dispatch: svc, queue: queue}
}

// Dispatch handles POST /api/orders/:id/dispatch. The offer cycle runs in
// the background; the caller polls the order or listens for the assignment
// elsewhere.
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	res := h.dispatch.DispatchAsync(types.ID(id))
	writeJSON(c, http.StatusAccepted, res)
}

type offerResponseRequest struct {
	CourierID string `json:"courier_id" binding:"required"`
	Accept    bool   `json:"accept"`
}

// OfferResponse handles POST /api/orders/:id/offer-response — the courier's
// accept or decline for the outstanding offer.
func (h *DispatchHandler) OfferResponse(c *gin.Context) {
	id := c.Param("id")
	var req offerResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}

	err := h.dispatch.RespondToOffer(types.ID(id), types.ID(req.CourierID), req.Accept)
	if errors.Is(err, dispatch.ErrNoActiveOffer) {
		// Late or duplicate response: the offer already moved on. Not a
		// fault the courier can act on.
		writeJSON(c, http.StatusConflict, gin.H{"status": "offer no longer active"})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "received"})
}

// QueueStats handles GET /api/dispatch/queue-stats.
func (h *DispatchHandler) QueueStats(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.queue.Stats())
}
