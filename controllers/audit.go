package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) ListAudit(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	entries, err := ctl.svc.Audit.ListAudit(ctx, limitQuery(c))
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve audit trail")
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (ctl *Controller) ListActivity(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	entries, err := ctl.svc.Audit.ListActivity(ctx, limitQuery(c))
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve activity log")
		return
	}
	c.JSON(http.StatusOK, entries)
}
