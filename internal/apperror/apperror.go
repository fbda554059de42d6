package apperror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Error codes surfaced in the JSON envelope.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeKYCLimit            = "KYC_LIMIT_EXCEEDED"
	CodeDuplicateEntry      = "DUPLICATE_ENTRY"
	CodeWagerClosed         = "WAGER_CLOSED"
	CodeRateLimit           = "RATE_LIMIT_EXCEEDED"
	CodeProvider            = "PROVIDER_ERROR"
	CodeDatabase            = "DATABASE_ERROR"
)

// AppError is a tagged error carrying the HTTP status and wire code it maps to.
type AppError struct {
	Code    string // One of the Code* constants
	Message string // User-facing message
	Status  int    // HTTP status
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return e.Message
}

// New builds an AppError with an explicit status.
func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// Validation returns a 400 VALIDATION_ERROR.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// Unauthorized returns a 401 UNAUTHORIZED.
func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// Forbidden returns a 403 FORBIDDEN.
func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, http.StatusForbidden)
}

// NotFound returns a 404 NOT_FOUND.
func NotFound(message string) *AppError {
	return New(CodeNotFound, message, http.StatusNotFound)
}

// InsufficientBalance returns a 400 INSUFFICIENT_BALANCE.
func InsufficientBalance(message string) *AppError {
	return New(CodeInsufficientBalance, message, http.StatusBadRequest)
}

// KYCLimit returns a 403 KYC_LIMIT_EXCEEDED.
func KYCLimit(message string) *AppError {
	return New(CodeKYCLimit, message, http.StatusForbidden)
}

// Duplicate returns a 409 DUPLICATE_ENTRY.
func Duplicate(message string) *AppError {
	return New(CodeDuplicateEntry, message, http.StatusConflict)
}

// WagerClosed returns a 400 WAGER_CLOSED.
func WagerClosed(message string) *AppError {
	return New(CodeWagerClosed, message, http.StatusBadRequest)
}

// Provider returns a 502 PROVIDER_ERROR.
func Provider(message string) *AppError {
	return New(CodeProvider, message, http.StatusBadGateway)
}

// Database returns a 500 DATABASE_ERROR.
func Database(message string) *AppError {
	return New(CodeDatabase, message, http.StatusInternalServerError)
}

// Respond writes err as the JSON error envelope. Non-AppError values are
// logged and returned as a generic 500 so internals never leak to clients.
func Respond(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	logrus.WithField("error", err.Error()).Error("Unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": CodeDatabase})
}

// Abort writes the envelope and aborts the gin chain (for middleware).
func Abort(c *gin.Context, err *AppError) {
	c.AbortWithStatusJSON(err.Status, gin.H{"error": err.Message, "code": err.Code})
}
