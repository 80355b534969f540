package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"investfolio/internal/service"
	"investfolio/internal/tax"
)

type TaxHandler struct {
	Tax *service.TaxService
}

func (h *TaxHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/portfolios/:portfolio_id/tax")
	g.GET("/report", h.report)
	g.GET("/classes/:class", h.ledger)
}

func (h *TaxHandler) report(c *gin.Context) {
	if h.Tax == nil {
		Error(c, http.StatusInternalServerError, "tax service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	group := c.Query("group")
	year := intQuery(c, "year", 0)
	report, err := h.Tax.Report(c.Request.Context(), portfolioID, group, year)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, gin.H{"group": group, "year": year})
}

func (h *TaxHandler) ledger(c *gin.Context) {
	if h.Tax == nil {
		Error(c, http.StatusInternalServerError, "tax service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	class := tax.AssetClass(c.Param("class"))
	year := intQuery(c, "year", 0)
	ledger, err := h.Tax.ClassLedger(c.Request.Context(), portfolioID, class, year)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, ledger, gin.H{"class": class, "year": year})
}
