package middleware

import (
	"net/http"

	"github.com/franciscosanchezn/gin-recipes-api/internal/models"
	"github.com/gin-gonic/gin"
)

// RequireRole checks that the authenticated viewer has the required role.
// It must run after Authenticate.
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := ViewerFrom(c)
		if !viewer.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				models.NewAPIError(models.ErrUnauthorized, "Authentication credentials were not provided"))
			return
		}

		if viewer.Role != requiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, models.NewAPIError(
				models.ErrForbidden,
				"Insufficient permissions",
				map[string]interface{}{"required_role": requiredRole},
			))
			return
		}

		c.Next()
	}
}
