package controllers

import (
	"net/http"

	"backoffice/middleware"
	"backoffice/models"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) CreateOrder(c *gin.Context) {
	var input models.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := ctl.svc.Orders.CreateOrder(ctx, middleware.CurrentActor(c), input)
	if err != nil {
		ctl.fail(c, err, "Failed to create order")
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (ctl *Controller) ListOrders(c *gin.Context) {
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

	orders, err := ctl.svc.Orders.ListOrders(ctx, models.OrderFilter{
		OwnerID: middleware.CurrentActor(c).OwnerID,
		Status:  models.PaymentStatus(c.Query("status")),
		From:    from,
		To:      to,
	})
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve orders")
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (ctl *Controller) GetOrder(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := ctl.svc.Orders.GetOrder(ctx, middleware.CurrentActor(c).OwnerID, c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (ctl *Controller) ReplaceOrderLines(c *gin.Context) {
	var input struct {
		Lines []models.LineInput `json:"lines" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := ctl.svc.Orders.ReplaceLines(ctx, middleware.CurrentActor(c), c.Param("id"), input.Lines)
	if err != nil {
		ctl.fail(c, err, "Failed to update order lines")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (ctl *Controller) MarkOrderPaid(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	order, sale, err := ctl.svc.Orders.MarkPaid(ctx, middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to mark order as paid")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "sale": sale})
}

func (ctl *Controller) MarkOrderUnpaid(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := ctl.svc.Orders.MarkUnpaid(ctx, middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to mark order as unpaid")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (ctl *Controller) CancelOrder(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := ctl.svc.Orders.Cancel(ctx, middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to cancel order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (ctl *Controller) DeleteOrder(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := ctl.svc.Orders.DeleteOrder(ctx, middleware.CurrentActor(c), c.Param("id")); err != nil {
		ctl.fail(c, err, "Failed to delete order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}
