package controllers

import (
	"net/http"

	"backoffice/middleware"
	"backoffice/models"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) ListRequestOrders(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := ctl.svc.Orders.ListRequests(ctx, models.RequestOrderFilter{
		OwnerID: middleware.CurrentActor(c).OwnerID,
		Status:  models.ConfirmationStatus(c.Query("status")),
	})
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve request orders")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (ctl *Controller) GetRequestOrder(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	ro, err := ctl.svc.Orders.GetRequest(ctx, middleware.CurrentActor(c).OwnerID, c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve request order")
		return
	}
	c.JSON(http.StatusOK, ro)
}

func (ctl *Controller) ConfirmRequestOrder(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	ro, order, err := ctl.svc.Orders.ConfirmRequest(ctx, middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to confirm request order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"requestOrder": ro, "order": order})
}

func (ctl *Controller) RejectRequestOrder(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	ro, err := ctl.svc.Orders.RejectRequest(ctx, middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to reject request order")
		return
	}
	c.JSON(http.StatusOK, ro)
}
