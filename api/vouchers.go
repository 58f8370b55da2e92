package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pandutama/tripbooking/internal/service/booking"
	"github.com/pandutama/tripbooking/internal/voucher"
)

type VoucherHandler struct {
	service booking.BookingUseCase
}

func NewVoucherHandler(service booking.BookingUseCase) *VoucherHandler {
	return &VoucherHandler{service: service}
}

func (h *VoucherHandler) Register(router *gin.RouterGroup) {
	router.POST("/generate/:code", h.generate)
	router.GET("/pdf/:code", h.pdf)
}

func (h *VoucherHandler) generate(c *gin.Context) {
	v, err := h.service.GenerateVoucher(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *VoucherHandler) pdf(c *gin.Context) {
	v, err := h.service.GenerateVoucher(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	data, filename, err := voucher.BuildPDF(v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render voucher"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
