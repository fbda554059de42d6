package api

import (
	"regexp"                     // Regular expressions
	"strings"                    // String manipulation
	"wagerhub/internal/apperror" // Error envelope
	"wagerhub/internal/domain"   // Importing domain models
	"wagerhub/internal/utils"    // Utility functions

	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"golang.org/x/crypto/bcrypt"    // Password hashing
	"gorm.io/gorm"                  // GORM ORM library
)

// Request and Response structs
type RegisterRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
	Phone    string `json:"phone"`                       // Optional phone number
}

// Request struct for login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

// isValidUsername checks if the username is 3-20 alphanumeric characters
func isValidUsername(username string) bool {
	matched, _ := regexp.MatchString(`^[A-Za-z0-9]{3,20}$`, username)
	return matched
}

// isValidPassword checks if the password length is between 8 and 64 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 64
}

// phonePattern matches local and international phone formats
var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// RegisterHandler creates a user together with their zero-balance wallet
func RegisterHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		// Validate username and password
		if !isValidUsername(req.Username) {
			apperror.Respond(c, apperror.Validation("Username must be 3-20 alphanumeric characters"))
			return
		}
		if !isValidPassword(req.Password) {
			apperror.Respond(c, apperror.Validation("Password must be 8-64 characters"))
			return
		}
		if req.Phone != "" && !phonePattern.MatchString(req.Phone) {
			apperror.Respond(c, apperror.Validation("Phone number is not valid"))
			return
		}
		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			apperror.Respond(c, apperror.Database("Failed to hash password"))
			return
		}
		// Create user with lowercase username to ensure uniqueness, plus their wallet
		user := domain.User{
			Username: strings.ToLower(req.Username),
			Password: string(hash),
			Phone:    req.Phone,
			Wallet:   domain.Wallet{Balance: decimal.Zero, Held: decimal.Zero},
		}
		if err := db.Create(&user).Error; err != nil {
			// Duplicate username is the usual cause here
			apperror.Respond(c, apperror.Duplicate("Username already exists"))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		var user domain.User // Fetch user from database
		if err := db.Where("username = ?", strings.ToLower(req.Username)).First(&user).Error; err != nil {
			apperror.Respond(c, apperror.Unauthorized("Invalid credentials"))
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			apperror.Respond(c, apperror.Unauthorized("Invalid credentials"))
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(user.ID, jwtSecret)
		if err != nil {
			apperror.Respond(c, apperror.Database("Failed to generate token"))
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}
