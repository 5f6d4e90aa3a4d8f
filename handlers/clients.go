// Package handlers serves the unauthenticated, rate limited endpoints used by buyers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"backoffice/controllers"
	"backoffice/models"
	"backoffice/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Public struct {
	svc    *services.Services
	logger *zap.Logger
}

func NewPublic(svc *services.Services, logger *zap.Logger) *Public {
	return &Public{svc: svc, logger: logger}
}

// catalogItem hides stock figures a buyer does not need.
type catalogItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	SubCategory   string  `json:"subCategory,omitempty"`
	Packaging     string  `json:"packaging,omitempty"`
	PricePerPiece float64 `json:"pricePerPiece"`
	PricePerBox   float64 `json:"pricePerBox"`
	PricePerTest  float64 `json:"pricePerTest"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	Available     bool    `json:"available"`
}

func (h *Public) SubmitRequestOrder(c *gin.Context) {
	var input models.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	ro, err := h.svc.Orders.SubmitRequest(ctx, c.Param("ownerId"), input)
	if err != nil {
		controllers.RespondError(c, h.logger, err, "Failed to submit request order")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          ro.ID,
		"viewToken":   ro.ViewToken,
		"expiry":      ro.Expiry,
		"totalAmount": ro.TotalAmount,
	})
}

func (h *Public) GetRequestOrderByToken(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	view, err := h.svc.Orders.GetRequestByToken(ctx, c.Param("token"))
	if err != nil {
		controllers.RespondError(c, h.logger, err, "Failed to retrieve request order")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Public) ListCatalog(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	products, err := h.svc.Ledger.ListProducts(ctx, models.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		SortBy:   "name",
	})
	if err != nil {
		controllers.RespondError(c, h.logger, err, "Failed to retrieve catalog")
		return
	}

	items := make([]catalogItem, 0, len(products))
	for _, p := range products {
		if h.svc.Ledger.Classify(p).Expiry == models.ExpiryPassed {
			continue
		}
		items = append(items, catalogItem{
			ID:            p.ID.Hex(),
			Name:          p.Name,
			Category:      p.Category,
			SubCategory:   p.SubCategory,
			Packaging:     p.Packaging,
			PricePerPiece: p.PricePerPiece,
			PricePerBox:   p.PricePerBox,
			PricePerTest:  p.PricePerTest,
			ImageURL:      p.ImageURL,
			Available:     p.Quantity > 0,
		})
	}
	c.JSON(http.StatusOK, items)
}

func (h *Public) ListCategories(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	categories, err := h.svc.Ledger.Categories(ctx)
	if err != nil {
		controllers.RespondError(c, h.logger, err, "Failed to retrieve categories")
		return
	}
	c.JSON(http.StatusOK, categories)
}
