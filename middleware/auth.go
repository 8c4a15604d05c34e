package middleware

import (
	"net/http"
	"strings"

	"tourly/utils"

	"github.com/gin-gonic/gin"
)

// ActorKey is the gin context key the authenticated actor is stored under.
const ActorKey = "actor"

// ActorMiddleware authenticates the request and stores the resulting actor
// (identity plus role) on the context for handlers to consume.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}

		actor, err := utils.ExtractActorFromToken(tokenString)
		if err != nil || actor.ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Insufficient authorization",
				"code":  0,
			})
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}
