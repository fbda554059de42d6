package api

import (
	"strconv"
	"wagerhub/internal/domain"

	"github.com/gin-gonic/gin"
)

// currentUserID reads the authenticated user id set by the JWT middleware.
func currentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// currentUser reads the full user loaded by the active-user middleware.
func currentUser(c *gin.Context) (domain.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		return domain.User{}, false
	}
	u, ok := v.(domain.User)
	return u, ok
}

// parsePagination reads page/page_size query params with the usual bounds.
func parsePagination(c *gin.Context) (page, pageSize int) {
	page = 1      // Default page number
	pageSize = 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	// Check and set page size within limits
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size
		}
	}
	return page, pageSize
}

// totalPages computes the page count for a listing.
func totalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}
