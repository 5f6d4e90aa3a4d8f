package middleware

import (
	"errors"
	"net/http"
	"strings"

	"backoffice/models"
	"backoffice/services"

	"github.com/gin-gonic/gin"
)

const (
	actorKey     = "actor"
	sessionIDKey = "sessionID"
)

// AuthMiddleware accepts a token from the "token" cookie or a Bearer header, checks that its
// session is still open and that the user holds one of roles.
func AuthMiddleware(auth *services.AuthService, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("token")
		if err != nil || token == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token not provided"})
				c.Abort()
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
				c.Abort()
				return
			}
			token = parts[1]
		}

		actor, sessionID, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Error validating token"})
			}
			c.Abort()
			return
		}
		if !hasRole(actor.Role, roles) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}

		c.Set(actorKey, *actor)
		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

func hasRole(role string, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// CurrentActor returns the user set by AuthMiddleware. An admin may act for another owner with
// ?owner=<user id>.
func CurrentActor(c *gin.Context) models.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(models.Actor)
	if actor.Role == models.RoleAdmin {
		if owner := c.Query("owner"); owner != "" {
			actor.OwnerID = owner
		}
	}
	return actor
}

func CurrentSessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
