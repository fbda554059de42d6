package api

import (
	"net/http"

	"wagerhub/internal/apperror"
	"wagerhub/internal/domain"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetPreferencesHandler returns the user's preferences, creating the row
// with defaults on first read
func GetPreferencesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var pref domain.Preference
		if err := db.Where("user_id = ?", userID).First(&pref).Error; err != nil {
			pref = domain.Preference{UserID: userID, EmailAlert: true, PushAlert: true, Theme: "light", Language: "en"}
			if err := db.Create(&pref).Error; err != nil {
				apperror.Respond(c, apperror.Database("Failed to create preferences"))
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"preferences": pref})
	}
}

// UpdatePreferencesRequest patches individual settings; nil fields are untouched
type UpdatePreferencesRequest struct {
	EmailAlert *bool   `json:"email_alert"`
	PushAlert  *bool   `json:"push_alert"`
	Theme      *string `json:"theme"`
	Language   *string `json:"language"`
}

// UpdatePreferencesHandler applies a partial update
func UpdatePreferencesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req UpdatePreferencesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		updates := map[string]any{}
		if req.EmailAlert != nil {
			updates["email_alert"] = *req.EmailAlert
		}
		if req.PushAlert != nil {
			updates["push_alert"] = *req.PushAlert
		}
		if req.Theme != nil {
			if *req.Theme != "light" && *req.Theme != "dark" {
				apperror.Respond(c, apperror.Validation("Theme must be light or dark"))
				return
			}
			updates["theme"] = *req.Theme
		}
		if req.Language != nil {
			updates["language"] = *req.Language
		}
		if len(updates) == 0 {
			apperror.Respond(c, apperror.Validation("Nothing to update"))
			return
		}
		var pref domain.Preference
		if err := db.Where("user_id = ?", userID).First(&pref).Error; err != nil {
			pref = domain.Preference{UserID: userID, EmailAlert: true, PushAlert: true, Theme: "light", Language: "en"}
			if err := db.Create(&pref).Error; err != nil {
				apperror.Respond(c, apperror.Database("Failed to create preferences"))
				return
			}
		}
		if err := db.Model(&pref).Updates(updates).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to update preferences"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"preferences": pref})
	}
}
