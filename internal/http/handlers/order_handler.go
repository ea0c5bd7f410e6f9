package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/modules/order"
	"dispatch/internal/types"
)

type OrderHandler struct {
	orders *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{orders: svc}
}

// Pickup coordinates carry no binding tags: zero is a valid latitude and
// longitude, and the order service range-checks them.
type createOrderRequest struct {
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	PayoutAmount   int64   `json:"payout_amount"`
	PayoutCurrency string  `json:"payout_currency"`
	Priority       string  `json:"priority"`
	SearchRadiusM  float64 `json:"search_radius_m"`
	MaxOffers      int     `json:"max_offers"`
	OfferTimeoutMS int64   `json:"offer_timeout_ms"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	currency := req.PayoutCurrency
	if currency == "" {
		currency = "USD"
	}

	o, err := h.orders.Create(c.Request.Context(), order.Draft{
		Pickup:        types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Payout:        types.Money{Amount: req.PayoutAmount, Currency: currency},
		Priority:      order.Priority(req.Priority),
		SearchRadiusM: req.SearchRadiusM,
		MaxOffers:     req.MaxOffers,
		OfferTimeout:  time.Duration(req.OfferTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"id": o.ID, "status": o.Status})
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	if err := h.orders.Cancel(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "cancelled"})
}
