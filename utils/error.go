package utils

import (
	"net/http"

	"tourly/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger := GetLogger()
				logger.Error("Unhandled panic", zap.Any("error", err))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	logger := GetLogger()
	logger.Warn(message, zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// statusByCode maps domain error codes to HTTP statuses.
var statusByCode = map[string]int{
	models.CodeValidation:        http.StatusBadRequest,
	models.CodeSlotConflict:      http.StatusConflict,
	models.CodeForbidden:         http.StatusForbidden,
	models.CodeInvalidTransition: http.StatusConflict,
	models.CodeNotFound:          http.StatusNotFound,
	models.CodeStale:             http.StatusConflict,
}

// JSONDomainError renders a scheduling-core error with the right HTTP status.
// Unclassified errors become opaque 500s so internals never leak to clients.
func JSONDomainError(c *gin.Context, err error) {
	code := models.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		logger := GetLogger()
		logger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal Server Error",
		})
		return
	}
	c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
}
