package controllers

import (
	"net/http"

	"backoffice/middleware"
	"backoffice/models"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) WriteOffStock(c *gin.Context) {
	var input models.WriteOffInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	entry, err := ctl.svc.Ledger.WriteOff(ctx, middleware.CurrentActor(c), c.Param("id"), input)
	if err != nil {
		ctl.fail(c, err, "Failed to write off stock")
		return
	}
	c.JSON(http.StatusCreated, entry)
}
