package controllers

import (
	"net/http"

	"backoffice/middleware"
	"backoffice/models"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) Restock(c *gin.Context) {
	var input models.RestockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	entry, err := ctl.svc.Ledger.Restock(ctx, middleware.CurrentActor(c), c.Param("id"), input)
	if err != nil {
		ctl.fail(c, err, "Failed to restock product")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (ctl *Controller) StockHistory(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	entries, err := ctl.svc.Ledger.History(ctx, c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve stock history")
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (ctl *Controller) ReconcileStock(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := ctl.svc.Ledger.Reconcile(ctx, c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to reconcile stock")
		return
	}
	c.JSON(http.StatusOK, r)
}

func (ctl *Controller) StockSummary(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	summary, err := ctl.svc.Ledger.Summary(ctx)
	if err != nil {
		ctl.fail(c, err, "Failed to build stock summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}
