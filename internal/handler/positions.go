package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"investfolio/internal/service"
)

type PositionHandler struct {
	Positions *service.PositionService
}

func (h *PositionHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/portfolios/:portfolio_id")
	g.GET("/positions", h.current)
	g.GET("/positions/history", h.history)
	g.GET("/patrimony", h.patrimony)
	g.GET("/returns", h.returns)
}

func (h *PositionHandler) current(c *gin.Context) {
	if h.Positions == nil {
		Error(c, http.StatusInternalServerError, "positions service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	items, err := h.Positions.CurrentPositions(c.Request.Context(), portfolioID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *PositionHandler) history(c *gin.Context) {
	if h.Positions == nil {
		Error(c, http.StatusInternalServerError, "positions service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	assetID := uint64QueryPtr(c, "asset_id")
	if portfolioID == 0 || assetID == nil {
		Error(c, http.StatusBadRequest, "portfolio_id and asset_id are required", nil)
		return
	}
	items, err := h.Positions.PositionHistory(c.Request.Context(), portfolioID, *assetID,
		dateQueryPtr(c, "since"), dateQueryPtr(c, "until"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *PositionHandler) patrimony(c *gin.Context) {
	if h.Positions == nil {
		Error(c, http.StatusInternalServerError, "positions service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	payload, err := h.Positions.PatrimonyEvolution(c.Request.Context(), portfolioID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, payload, nil)
}

func (h *PositionHandler) returns(c *gin.Context) {
	if h.Positions == nil {
		Error(c, http.StatusInternalServerError, "positions service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	payload, err := h.Positions.PortfolioReturns(c.Request.Context(), portfolioID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, payload, nil)
}
