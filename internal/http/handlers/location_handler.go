package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/modules/location"
	"dispatch/internal/types"
)

type LocationHandler struct {
	location *location.Service
}

func NewLocationHandler(svc *location.Service) *LocationHandler {
	return &LocationHandler{location: svc}
}

// Coordinate fields carry no binding tags: zero is a valid latitude and
// longitude, so range validation happens explicitly below.
type positionRequest struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	CapturedAt int64   `json:"captured_at_ms"`
}

// Report handles PUT /api/couriers/:id/location. Always acknowledges:
// position reporting is best-effort by contract.
func (h *LocationHandler) Report(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing courier id")
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		writeError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}

	pos := location.Position{
		CourierID: types.ID(id),
		Point:     types.Point{Lat: req.Lat, Lng: req.Lng},
	}
	if req.CapturedAt > 0 {
		pos.CapturedAt = time.UnixMilli(req.CapturedAt).UTC()
	}
	h.location.Report(c.Request.Context(), pos)
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// Offline handles DELETE /api/couriers/:id/location.
func (h *LocationHandler) Offline(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing courier id")
		return
	}
	h.location.Offline(c.Request.Context(), types.ID(id))
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}
