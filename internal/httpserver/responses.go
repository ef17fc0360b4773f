package httpserver

import (
	"errors"
	"log"
	"net/http"

	"storefront-api/internal/domain"

	"github.com/gin-gonic/gin"
)

// writeError maps the error taxonomy onto HTTP responses. Auth rejections
// keep the provider's (already non-enumerating) message; transport failures
// become a distinct "service unreachable" answer with retry guidance.
func writeError(c *gin.Context, logger *log.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
		return
	}
	var ae *domain.AuthError
	if errors.As(err, &ae) {
		status := ae.StatusCode
		if status < 400 || status >= 500 {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{"error": ae.Message})
		return
	}
	var ne *domain.NetworkError
	if errors.As(err, &ne) {
		logger.Printf("httpserver: provider unreachable error=%v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service unreachable. Please check your connection and try again.",
		})
		return
	}
	var ce *domain.ConfigurationError
	if errors.As(err, &ce) {
		logger.Printf("httpserver: configuration error=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": ce.Message})
		return
	}
	var re *domain.RetryableError
	if errors.As(err, &re) {
		status := re.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": re.Message, "code": re.Code})
		return
	}
	logger.Printf("httpserver: unexpected error=%v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred"})
}
