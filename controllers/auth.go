package controllers

import (
	"net/http"

	"backoffice/middleware"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) Login(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := ctl.svc.Auth.Login(ctx, input.Username, input.Password, getClientIP(c), c.Request.UserAgent())
	if err != nil {
		ctl.fail(c, err, "Error while logging in")
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "token",
		Value:    result.Token,
		MaxAge:   int(ctl.tokenTTL.Seconds()),
		Path:     "/",
		Secure:   ctl.secureCookie,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.JSON(http.StatusOK, gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"userID":    result.User.ID.Hex(),
		"role":      result.User.Role,
		"fullName":  result.User.Name,
	})
}

func (ctl *Controller) Logout(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := ctl.svc.Auth.Logout(ctx, middleware.CurrentActor(c), middleware.CurrentSessionID(c)); err != nil {
		ctl.fail(c, err, "Error while logging out")
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "token",
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   ctl.secureCookie,
		HttpOnly: true,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func getClientIP(c *gin.Context) string {
	ip := c.Request.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = c.ClientIP()
	}
	return ip
}
