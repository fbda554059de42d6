package middleware

import (
	"wagerhub/internal/apperror" // Error envelope
	"wagerhub/internal/domain"   // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// AdminOnlyMiddleware checks the user's role from the database on each request
func AdminOnlyMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			apperror.Abort(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var user domain.User // Fetch user from database
		if err := db.First(&user, userID).Error; err != nil {
			apperror.Abort(c, apperror.Forbidden("Admin access required"))
			return
		}
		// Check if user role is admin
		if user.Role != "admin" {
			apperror.Abort(c, apperror.Forbidden("Admin access required"))
			return
		}
		c.Set("adminID", user.ID) // Reviewer id for audit columns
		c.Next()                  // If admin, proceed to the next handler
	}
}
