package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"investfolio/internal/models"
	"investfolio/internal/service"
)

type DividendHandler struct {
	Dividends *service.DividendService
}

func (h *DividendHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/portfolios/:portfolio_id/dividends")
	g.GET("", h.list)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
}

type dividendRequest struct {
	AssetID uint64          `json:"asset_id" binding:"required"`
	Date    string          `json:"date" binding:"required"`
	Amount  decimal.Decimal `json:"amount" binding:"required"`
}

func (r dividendRequest) toModel(portfolioID uint64) (*models.Dividend, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return nil, err
	}
	return &models.Dividend{
		PortfolioID: portfolioID,
		AssetID:     r.AssetID,
		Date:        date,
		Amount:      r.Amount,
	}, nil
}

func (h *DividendHandler) list(c *gin.Context) {
	if h.Dividends == nil {
		Error(c, http.StatusInternalServerError, "dividend service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	items, err := h.Dividends.List(c.Request.Context(), portfolioID, uint64QueryPtr(c, "asset_id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *DividendHandler) create(c *gin.Context) {
	if h.Dividends == nil {
		Error(c, http.StatusInternalServerError, "dividend service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	var req dividendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item, err := req.toModel(portfolioID)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", nil)
		return
	}
	if err := h.Dividends.Create(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *DividendHandler) update(c *gin.Context) {
	if h.Dividends == nil {
		Error(c, http.StatusInternalServerError, "dividend service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	id := uint64Param(c, "id")
	if portfolioID == 0 || id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req dividendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item, err := req.toModel(portfolioID)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", nil)
		return
	}
	item.ID = id
	if err := h.Dividends.Update(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *DividendHandler) remove(c *gin.Context) {
	if h.Dividends == nil {
		Error(c, http.StatusInternalServerError, "dividend service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.Dividends.Delete(c.Request.Context(), id); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": id}, nil)
}
