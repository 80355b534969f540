package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"investfolio/internal/models"
	"investfolio/internal/service"
)

// EventHandler manages corporate events. Events are portfolio-independent;
// mutations re-consolidate every portfolio holding the asset.
type EventHandler struct {
	Events *service.EventService
}

func (h *EventHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/events")
	g.GET("", h.list)
	g.POST("", h.create)
	g.DELETE("/:id", h.remove)
}

type eventRequest struct {
	AssetID uint64          `json:"asset_id" binding:"required"`
	Date    string          `json:"date" binding:"required"`
	Factor  decimal.Decimal `json:"factor" binding:"required"`
	Kind    string          `json:"kind"`
}

func (h *EventHandler) list(c *gin.Context) {
	if h.Events == nil {
		Error(c, http.StatusInternalServerError, "event service unavailable", nil)
		return
	}
	items, err := h.Events.List(c.Request.Context(), uint64QueryPtr(c, "asset_id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *EventHandler) create(c *gin.Context) {
	if h.Events == nil {
		Error(c, http.StatusInternalServerError, "event service unavailable", nil)
		return
	}
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", nil)
		return
	}
	if !req.Factor.IsPositive() {
		Error(c, http.StatusBadRequest, "factor must be positive", nil)
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = "split"
	}
	item := &models.CorporateEvent{
		AssetID: req.AssetID,
		Date:    date,
		Factor:  req.Factor,
		Kind:    kind,
	}
	if err := h.Events.Create(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *EventHandler) remove(c *gin.Context) {
	if h.Events == nil {
		Error(c, http.StatusInternalServerError, "event service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.Events.Delete(c.Request.Context(), id); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": id}, nil)
}
