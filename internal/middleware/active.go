package middleware

import (
	"wagerhub/internal/apperror" // Error envelope
	"wagerhub/internal/domain"   // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// ActiveUserMiddleware loads the authenticated user and blocks suspended
// accounts from money and gameplay routes. The loaded user is stored in the
// context so handlers can read the KYC level without a second query.
func ActiveUserMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			apperror.Abort(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var user domain.User // Fetch user from database
		if err := db.First(&user, userID).Error; err != nil {
			apperror.Abort(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		if user.Suspended {
			apperror.Abort(c, apperror.Forbidden("Account suspended"))
			return
		}
		c.Set("user", user) // Full user for KYC checks downstream
		c.Next()
	}
}
