package api

import (
	"net/http"

	"wagerhub/internal/apperror"
	"wagerhub/internal/domain"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListNotificationsHandler returns the user's notifications, newest first
func ListNotificationsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		page, pageSize := parsePagination(c)
		query := db.Model(&domain.Notification{}).Where("user_id = ?", userID)
		if c.Query("unread") == "true" {
			query = query.Where("read = ?", false)
		}
		var total int64
		if err := query.Count(&total).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to count notifications"))
			return
		}
		var notes []domain.Notification
		if err := query.Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&notes).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to fetch notifications"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"notifications": notes,
			"page":          page,
			"page_size":     pageSize,
			"total":         total,
			"total_pages":   totalPages(total, pageSize),
		})
	}
}

// MarkReadRequest selects notifications to mark read; empty means all
type MarkReadRequest struct {
	IDs []uint `json:"ids"`
}

// MarkNotificationsReadHandler flips the read flag
func MarkNotificationsReadHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req MarkReadRequest
		_ = c.ShouldBindJSON(&req) // Empty body marks everything read
		query := db.Model(&domain.Notification{}).Where("user_id = ?", userID)
		if len(req.IDs) > 0 {
			query = query.Where("id IN ?", req.IDs)
		}
		if err := query.Update("read", true).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to mark notifications"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Notifications marked read"})
	}
}
