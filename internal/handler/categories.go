package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"investfolio/internal/models"
	"investfolio/internal/service"
)

type CategoryHandler struct {
	Categories *service.CategoryService
}

func (h *CategoryHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/portfolios/:portfolio_id/categories")
	g.GET("", h.list)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.remove)
	g.POST("/:id/assets/:asset_id", h.assign)
}

type categoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *CategoryHandler) list(c *gin.Context) {
	if h.Categories == nil {
		Error(c, http.StatusInternalServerError, "category service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	items, err := h.Categories.List(c.Request.Context(), portfolioID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *CategoryHandler) create(c *gin.Context) {
	if h.Categories == nil {
		Error(c, http.StatusInternalServerError, "category service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	if portfolioID == 0 {
		Error(c, http.StatusBadRequest, "invalid portfolio_id", nil)
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item := &models.Category{PortfolioID: portfolioID, Name: req.Name}
	if err := h.Categories.Create(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *CategoryHandler) update(c *gin.Context) {
	if h.Categories == nil {
		Error(c, http.StatusInternalServerError, "category service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	id := uint64Param(c, "id")
	if portfolioID == 0 || id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	item := &models.Category{ID: id, PortfolioID: portfolioID, Name: req.Name}
	if err := h.Categories.Update(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *CategoryHandler) remove(c *gin.Context) {
	if h.Categories == nil {
		Error(c, http.StatusInternalServerError, "category service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	id := uint64Param(c, "id")
	if portfolioID == 0 || id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.Categories.Delete(c.Request.Context(), portfolioID, id); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"deleted": id}, nil)
}

func (h *CategoryHandler) assign(c *gin.Context) {
	if h.Categories == nil {
		Error(c, http.StatusInternalServerError, "category service unavailable", nil)
		return
	}
	portfolioID := uint64Param(c, "portfolio_id")
	categoryID := uint64Param(c, "id")
	assetID := uint64Param(c, "asset_id")
	if portfolioID == 0 || categoryID == 0 || assetID == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.Categories.Assign(c.Request.Context(), portfolioID, categoryID, assetID); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"category_id": categoryID, "asset_id": assetID}, nil)
}
