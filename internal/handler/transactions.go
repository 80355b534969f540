package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"investfolio/internal/models"
	"investfolio/internal/service"
)

type TransactionHandler struct {
	Transactions *service.TransactionService
}

func (h *TransactionHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/portfolios/:portfolio_id/transactions")
	g.GET("", h.list)
	g.GET("/gains", h.gains)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
}

type transactionRequest struct {
	AssetID      uint64          `json:"asset_id" binding:"required"`
	BrokerID     uint64          `json:"broker_id"`
	Date         string          `json:"date" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	Price        decimal.Decimal `json:"price" binding:"required"`
	CurrencyCode string          `json:"currency_code"`
}

func (r transactionRequest) toModel(portfolioID uint64) (*models.Transaction, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return nil, err
	}
	return &models.Transaction{
		PortfolioID:  portfolioID,
		AssetID:      r.AssetID,
		BrokerID:     r.BrokerID,
		Date:         date,
		Quantity:     r.Quantity,
		Price:        r.Price,
		CurrencyCode: r.CurrencyCode,
	}, nil
}

func (h *TransactionHandler) list(c *gin.Context) {
	if h.Transactions == nil {
		Error(c, http.StatusInternalServerError, "transaction service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	items, err := h.Transactions.List(c.Request.Context(), portfolioID, uint64QueryPtr(c, "asset_id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *TransactionHandler) gains(c *gin.Context) {
	if h.Transactions == nil {
		Error(c, http.StatusInternalServerError, "transaction service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	rows, err := h.Transactions.GainsView(c.Request.Context(), portfolioID, uint64QueryPtr(c, "asset_id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, nil)
}

func (h *TransactionHandler) create(c *gin.Context) {
	if h.Transactions == nil {
		Error(c, http.StatusInternalServerError, "transaction service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item, err := req.toModel(portfolioID)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD", nil)
		return
	}
	if err := h.Transactions.Create(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *TransactionHandler) update(c *gin.Context) {
	if h.Transactions == nil {
		Error(c, http.StatusInternalServerError, "transaction service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	id := uint64Param(c, "id")
	if portfolioID == 0 || id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req transactionRequest
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
	if err := h.Transactions.Update(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *TransactionHandler) remove(c *gin.Context) {
	if h.Transactions == nil {
		Error(c, http.StatusInternalServerError, "transaction service unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.Transactions.Delete(c.Request.Context(), id); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": id}, nil)
}
