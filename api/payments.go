package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pandutama/tripbooking/internal/domain"
	"github.com/pandutama/tripbooking/internal/midtrans"
	"github.com/pandutama/tripbooking/internal/poller"
	"github.com/pandutama/tripbooking/internal/service/booking"
)

// watchWindow bounds one long-poll request; clients reconnect to keep
// watching. Kept under typical load balancer idle timeouts.
const watchWindow = 55 * time.Second

type PaymentHandler struct {
	service booking.BookingUseCase
	poll    poller.Options
}

type PaymentOption func(*PaymentHandler)

func WithPollOptions(interval time.Duration, maxChecks int) PaymentOption {
	return func(h *PaymentHandler) {
		h.poll.Interval = interval
		h.poll.MaxChecks = maxChecks
	}
}

type createSessionRequest struct {
	BookingCode string `json:"booking_code" binding:"required"`
}

func NewPaymentHandler(service booking.BookingUseCase, opts ...PaymentOption) *PaymentHandler {
	h := &PaymentHandler{
		service: service,
		poll:    poller.Options{Interval: 3 * time.Second, MaxChecks: 20},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/create", h.createSession)
	router.GET("/status/:code", h.status)
	router.GET("/watch/:code", h.watch)
	router.POST("/check/:code", h.check)
	router.POST("/notify", h.notify)
}

func (h *PaymentHandler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.service.RequestPaymentSession(c.Request.Context(), req.BookingCode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// status is the cheap store-read path polled by clients.
func (h *PaymentHandler) status(c *gin.Context) {
	view, err := h.service.GetPaymentStatus(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// watch long-polls the stored status until it turns terminal, the attempt
// budget runs out, or the request window closes. One blocking call replaces a
// client-side hammer loop against /status.
func (h *PaymentHandler) watch(c *gin.Context) {
	code := c.Param("code")

	latest, err := h.service.GetPaymentStatus(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}
	if latest.PaymentStatus.IsTerminal() {
		c.JSON(http.StatusOK, watchResponse(latest, poller.Snapshot{ChecksDone: 1, MaxChecks: h.poll.MaxChecks, LastStatus: latest.PaymentStatus}))
		return
	}

	task := poller.New(func(ctx context.Context) (domain.PaymentStatus, error) {
		view, fetchErr := h.service.GetPaymentStatus(ctx, code)
		if fetchErr != nil {
			return "", fetchErr
		}
		latest = view
		return view.PaymentStatus, nil
	}, h.poll)

	ctx, cancel := context.WithTimeout(c.Request.Context(), watchWindow)
	defer cancel()

	snap, runErr := task.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.DeadlineExceeded) {
		// Client went away; nothing left to answer.
		return
	}
	c.JSON(http.StatusOK, watchResponse(latest, snap))
}

func watchResponse(view *booking.StatusView, snap poller.Snapshot) gin.H {
	return gin.H{
		"view":        view,
		"checks_done": snap.ChecksDone,
		"stopped":     snap.Stopped,
	}
}

// check forces reconciliation against the gateway.
func (h *PaymentHandler) check(c *gin.Context) {
	view, err := h.service.CheckPaymentStatus(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// notify receives the gateway's asynchronous notification. The gateway
// retries on non-2xx, so unknown orders are acknowledged rather than failed.
func (h *PaymentHandler) notify(c *gin.Context) {
	var n midtrans.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.HandleNotification(c.Request.Context(), n); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// An order we cannot place is dropped, not failed: a non-2xx
			// would make the gateway redeliver forever.
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
