package controllers

import (
	"net/http"

	"backoffice/middleware"
	"backoffice/models"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) RegisterUser(c *gin.Context) {
	var input models.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := ctl.svc.Auth.Register(ctx, middleware.CurrentActor(c), input)
	if err != nil {
		ctl.fail(c, err, "Failed to register user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (ctl *Controller) ListUsers(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := ctl.svc.Auth.ListUsers(ctx)
	if err != nil {
		ctl.fail(c, err, "Failed to retrieve users")
		return
	}
	c.JSON(http.StatusOK, users)
}
