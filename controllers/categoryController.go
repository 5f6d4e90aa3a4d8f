package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) ListCategories(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	categories, err := ctl.svc.Ledger.Categories(ctx)
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve categories")
		return
	}
	c.JSON(http.StatusOK, categories)
}
