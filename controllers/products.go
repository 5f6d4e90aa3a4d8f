package controllers

import (
	"net/http"
	"time"

	"backoffice/middleware"
	"backoffice/models"

	"github.com/gin-gonic/gin"
)

type productInput struct {
	Name          string     `json:"name" binding:"required"`
	Category      string     `json:"category"`
	SubCategory   string     `json:"subCategory"`
	Packaging     string     `json:"packaging"`
	Quantity      int        `json:"quantity"`
	CriticalStock int        `json:"criticalStock"`
	PricePerBox   float64    `json:"pricePerBox"`
	PricePerTest  float64    `json:"pricePerTest"`
	PricePerPiece float64    `json:"pricePerPiece"`
	ExpiryDate    *time.Time `json:"expiryDate"`
	ImageURL      string     `json:"imageUrl"`
}

type productView struct {
	models.Product
	Classification models.StockClassification `json:"classification"`
}

func (ctl *Controller) view(p models.Product) productView {
	return productView{Product: p, Classification: ctl.svc.Ledger.Classify(p)}
}

func (ctl *Controller) CreateProduct(c *gin.Context) {
	var input productInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := ctl.svc.Ledger.CreateProduct(ctx, middleware.CurrentActor(c), models.Product{
		Name:          input.Name,
		Category:      input.Category,
		SubCategory:   input.SubCategory,
		Packaging:     input.Packaging,
		Quantity:      input.Quantity,
		CriticalStock: input.CriticalStock,
		PricePerBox:   input.PricePerBox,
		PricePerTest:  input.PricePerTest,
		PricePerPiece: input.PricePerPiece,
		ExpiryDate:    input.ExpiryDate,
		ImageURL:      input.ImageURL,
	})
	if err != nil {
		ctl.fail(c, err, "Failed to create product")
		return
	}
	c.JSON(http.StatusCreated, ctl.view(*p))
}

func (ctl *Controller) ListProducts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	products, err := ctl.svc.Ledger.ListProducts(ctx, models.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sort"),
	})
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve products")
		return
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, ctl.view(p))
	}
	c.JSON(http.StatusOK, views)
}

func (ctl *Controller) GetProduct(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := ctl.svc.Ledger.GetProduct(ctx, c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve product")
		return
	}
	c.JSON(http.StatusOK, ctl.view(*p))
}

func (ctl *Controller) UpdateProduct(c *gin.Context) {
	var input models.UpdateProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := ctl.svc.Ledger.UpdateProduct(ctx, middleware.CurrentActor(c), c.Param("id"), input)
	if err != nil {
		ctl.fail(c, err, "Failed to update product")
		return
	}
	c.JSON(http.StatusOK, ctl.view(*p))
}

func (ctl *Controller) DeleteProduct(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := ctl.svc.Ledger.DeleteProduct(ctx, middleware.CurrentActor(c), c.Param("id")); err != nil {
		ctl.fail(c, err, "Failed to delete product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}
