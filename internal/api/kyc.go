package api

import (
	"encoding/json"
	"net/http"

	"wagerhub/internal/apperror"
	"wagerhub/internal/domain"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GetKYCHandler returns the user's tier, its limits and the latest submission
func GetKYCHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var latest domain.KYCSubmission
		resp := gin.H{
			"level":  user.KYCLevel,
			"limits": domain.LimitsForLevel(user.KYCLevel),
		}
		if err := db.Where("user_id = ?", user.ID).Order("created_at desc").First(&latest).Error; err == nil {
			resp["submission"] = latest
		}
		c.JSON(http.StatusOK, resp)
	}
}

// SubmitKYCRequest asks for the next verification tier
type SubmitKYCRequest struct {
	Level   int               `json:"level" binding:"required"`   // Must be current level + 1
	Payload map[string]string `json:"payload" binding:"required"` // Required fields per tier
}

// SubmitKYCHandler queues a level-up request for admin review. Skipping
// tiers is rejected, as is submitting while another request is pending.
func SubmitKYCHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req SubmitKYCRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		if user.KYCLevel >= domain.MaxKYCLevel {
			apperror.Respond(c, apperror.Validation("Already at the maximum level"))
			return
		}
		if req.Level != user.KYCLevel+1 {
			apperror.Respond(c, apperror.Validation("Levels must be requested one at a time"))
			return
		}
		// Every required field for the tier must be present and non-empty
		for _, field := range domain.RequiredKYCFields[req.Level] {
			if req.Payload[field] == "" {
				apperror.Respond(c, apperror.Validation("Missing required field: "+field))
				return
			}
		}
		var pending domain.KYCSubmission
		if err := db.Where("user_id = ? AND status = ?", user.ID, domain.KYCPending).First(&pending).Error; err == nil {
			apperror.Respond(c, apperror.Duplicate("A submission is already pending review"))
			return
		}
		payload, err := json.Marshal(req.Payload)
		if err != nil {
			apperror.Respond(c, apperror.Validation("Invalid payload"))
			return
		}
		submission := domain.KYCSubmission{
			UserID:  user.ID,
			Level:   req.Level,
			Payload: datatypes.JSON(payload),
			Status:  domain.KYCPending,
		}
		if err := db.Create(&submission).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to create submission"))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"submission": submission})
	}
}
