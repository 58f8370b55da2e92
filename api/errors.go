package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pandutama/tripbooking/internal/domain"
)

// respondError maps the error taxonomy onto HTTP. Failure responses always
// carry a next action so the client is never stranded.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, domain.ErrPreconditionFailed):
		c.JSON(http.StatusConflict, gin.H{"error": "payment not yet confirmed", "action": "recheck payment status"})
	case errors.Is(err, domain.ErrGateway):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable", "action": "retry payment", "support": "support@tripbooking.id"})
	case errors.Is(err, domain.ErrUpstream):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable", "action": "try again later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
