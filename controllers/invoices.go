package controllers

import (
	"net/http"

	"backoffice/middleware"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) CreateInvoice(c *gin.Context) {
	var input struct {
		OrderID string `json:"orderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	inv, err := ctl.svc.Invoices.CreateInvoice(ctx, middleware.CurrentActor(c), input.OrderID)
	if err != nil {
		ctl.fail(c, err, "Failed to create invoice")
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (ctl *Controller) ListInvoices(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := ctl.svc.Invoices.ListInvoices(ctx, middleware.CurrentActor(c).OwnerID)
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve invoices")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (ctl *Controller) GetInvoice(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	inv, err := ctl.svc.Invoices.GetInvoice(ctx, middleware.CurrentActor(c).OwnerID, c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}
