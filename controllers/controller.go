// Package controllers serves the authenticated back office API.
package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"backoffice/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

type Controller struct {
	svc          *services.Services
	logger       *zap.Logger
	secureCookie bool
	tokenTTL     time.Duration
}

func NewController(svc *services.Services, logger *zap.Logger, secureCookie bool, tokenTTL time.Duration) *Controller {
	return &Controller{svc: svc, logger: logger, secureCookie: secureCookie, tokenTTL: tokenTTL}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// RespondError writes the status matching a service error. Unknown errors are logged and hidden
// behind fallback.
func RespondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrRequestExpired):
		status = http.StatusGone
	case errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrInvoiceExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (ctl *Controller) fail(c *gin.Context, err error, fallback string) {
	RespondError(c, ctl.logger, err, fallback)
}

// ParseTimeQuery reads an optional RFC 3339 or YYYY-MM-DD query parameter.
func ParseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func limitQuery(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
