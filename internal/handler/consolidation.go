package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"investfolio/internal/consolidator"
	"investfolio/internal/marketdata"
	"investfolio/internal/repository"
)

// ConsolidationHandler exposes manual triggers for the jobs the scheduler
// runs overnight.
type ConsolidationHandler struct {
	Repo   repository.Repository
	Engine *consolidator.Consolidator
	Market *marketdata.Service
}

func (h *ConsolidationHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/portfolios/:portfolio_id/consolidate", h.consolidatePortfolio)
	r.POST("/api/v1/portfolios/:portfolio_id/assets/:asset_id/recalculate", h.recalculateAsset)
	r.POST("/api/v1/marketdata/refresh", h.refreshMarketData)
}

func (h *ConsolidationHandler) consolidatePortfolio(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "consolidator unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	if !h.portfolioExists(c, portfolioID) {
		return
	}
	if err := h.Engine.ConsolidatePortfolio(c.Request.Context(), portfolioID); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"portfolio_id": portfolioID}, nil)
}

func (h *ConsolidationHandler) recalculateAsset(c *gin.Context) {
	if h.Engine == nil {
		Error(c, http.StatusInternalServerError, "consolidator unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	assetID := uint64Param(c, "asset_id")
	if portfolioID == 0 || assetID == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if !h.portfolioExists(c, portfolioID) {
		return
	}
	if err := h.Engine.RecalculateAsset(c.Request.Context(), portfolioID, assetID); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"portfolio_id": portfolioID, "asset_id": assetID}, nil)
}

func (h *ConsolidationHandler) portfolioExists(c *gin.Context, portfolioID uint64) bool {
	if h.Repo == nil {
		return true
	}
	portfolio, err := h.Repo.GetPortfolioByID(c.Request.Context(), portfolioID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return false
	}
	if portfolio == nil {
		Error(c, http.StatusNotFound, "portfolio not found", nil)
		return false
	}
	return true
}

func (h *ConsolidationHandler) refreshMarketData(c *gin.Context) {
	if h.Market == nil {
		Error(c, http.StatusInternalServerError, "market data service unavailable", nil)
		return
	}
	if err := h.Market.RefreshAll(c.Request.Context()); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"refreshed": true}, nil)
}
