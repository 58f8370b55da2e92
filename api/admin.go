package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pandutama/tripbooking/internal/auth"
	"github.com/pandutama/tripbooking/internal/domain"
	"github.com/pandutama/tripbooking/internal/service/booking"
)

type AdminHandler struct {
	auth    *auth.Service
	service booking.BookingUseCase
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type overrideRequest struct {
	Status        domain.BookingStatus `json:"status" binding:"required"`
	PaymentStatus domain.PaymentStatus `json:"payment_status" binding:"required"`
}

func NewAdminHandler(authSvc *auth.Service, service booking.BookingUseCase) *AdminHandler {
	return &AdminHandler{auth: authSvc, service: service}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	router.POST("/login", h.login)

	guarded := router.Group("/", h.auth.Middleware())
	guarded.PUT("/bookings/:code/status", h.overrideStatus)
}

func (h *AdminHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// overrideStatus is the operator escape hatch; it bypasses the monotonicity
// guard on purpose.
func (h *AdminHandler) overrideStatus(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validBookingStatus(req.Status) || !validPaymentStatus(req.PaymentStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status value"})
		return
	}

	updated, err := h.service.OverrideStatus(c.Request.Context(), c.Param("code"), req.Status, req.PaymentStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func validBookingStatus(s domain.BookingStatus) bool {
	switch s {
	case domain.BookingStatusPending, domain.BookingStatusConfirmed, domain.BookingStatusCancelled, domain.BookingStatusCompleted:
		return true
	}
	return false
}

func validPaymentStatus(s domain.PaymentStatus) bool {
	switch s {
	case domain.PaymentStatusPending, domain.PaymentStatusSettlement, domain.PaymentStatusCapture,
		domain.PaymentStatusDeny, domain.PaymentStatusCancel, domain.PaymentStatusExpire, domain.PaymentStatusFailure:
		return true
	}
	return false
}
