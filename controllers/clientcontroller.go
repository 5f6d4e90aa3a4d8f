package controllers

import (
	"net/http"

	"backoffice/middleware"
	"backoffice/models"

	"github.com/gin-gonic/gin"
)

type customerInput struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	City    string `json:"city"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
}

func (in customerInput) customer() models.Customer {
	return models.Customer{Name: in.Name, Address: in.Address, City: in.City, Contact: in.Contact, Email: in.Email}
}

func (ctl *Controller) CreateCustomer(c *gin.Context) {
	var input customerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	customer, err := ctl.svc.Customers.CreateCustomer(ctx, middleware.CurrentActor(c), input.customer())
	if err != nil {
		ctl.fail(c, err, "Failed to create customer")
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (ctl *Controller) ListCustomers(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	customers, err := ctl.svc.Customers.ListCustomers(ctx, middleware.CurrentActor(c).OwnerID)
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve customers")
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (ctl *Controller) GetCustomer(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	customer, err := ctl.svc.Customers.GetCustomer(ctx, middleware.CurrentActor(c).OwnerID, c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve customer")
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (ctl *Controller) UpdateCustomer(c *gin.Context) {
	var input customerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	customer, err := ctl.svc.Customers.UpdateCustomer(ctx, middleware.CurrentActor(c), c.Param("id"), input.customer())
	if err != nil {
		ctl.fail(c, err, "Failed to update customer")
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (ctl *Controller) DeleteCustomer(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := ctl.svc.Customers.DeleteCustomer(ctx, middleware.CurrentActor(c), c.Param("id")); err != nil {
		ctl.fail(c, err, "Failed to delete customer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted"})
}
