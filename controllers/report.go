package controllers

import (
	"net/http"
	"time"

	"backoffice/middleware"
	"backoffice/models"

	"github.com/gin-gonic/gin"
)

const defaultReportRange = 30 * 24 * time.Hour

func (ctl *Controller) ListSales(c *gin.Context) {
	from, err := ParseTimeQuery(c, "from")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
		return
	}
	to, err := ParseTimeQuery(c, "to")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sales, err := ctl.svc.Sales.ListSales(ctx, models.SaleFilter{
		OwnerID:       middleware.CurrentActor(c).OwnerID,
		From:          from,
		To:            to,
		IncludeVoided: c.Query("includeVoided") == "true",
	})
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve sales")
		return
	}
	c.JSON(http.StatusOK, sales)
}

// GetSalesReport defaults to the last 30 days.
func (ctl *Controller) GetSalesReport(c *gin.Context) {
	from, err := ParseTimeQuery(c, "from")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
		return
	}
	to, err := ParseTimeQuery(c, "to")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
		return
	}
	end := time.Now()
	if to != nil {
		end = *to
	}
	start := end.Add(-defaultReportRange)
	if from != nil {
		start = *from
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	report, err := ctl.svc.Sales.SalesReport(ctx, middleware.CurrentActor(c).OwnerID, start, end)
	if err != nil {
		ctl.fail(c, err, "Failed to build sales report")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (ctl *Controller) GetDashboard(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	dashboard, err := ctl.svc.Sales.Dashboard(ctx, middleware.CurrentActor(c).OwnerID)
	if err != nil {
		ctl.fail(c, err, "Failed to build dashboard")
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
