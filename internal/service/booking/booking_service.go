package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pandutama/tripbooking/internal/domain"
	"github.com/pandutama/tripbooking/internal/kafka"
	"github.com/pandutama/tripbooking/internal/midtrans"
	"github.com/pandutama/tripbooking/internal/repository"
	"github.com/pandutama/tripbooking/internal/retry"
)

// BookingUseCase is the only write authority over a booking's status and
// payment status.
type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, code string) (*domain.Booking, error)
	RequestPaymentSession(ctx context.Context, code string) (*midtrans.Session, error)
	GetPaymentStatus(ctx context.Context, code string) (*StatusView, error)
	CheckPaymentStatus(ctx context.Context, code string) (*StatusView, error)
	HandleNotification(ctx context.Context, n midtrans.Notification) error
	GenerateVoucher(ctx context.Context, code string) (*domain.Voucher, error)
	OverrideStatus(ctx context.Context, code string, status domain.BookingStatus, paymentStatus domain.PaymentStatus) (*domain.Booking, error)
	ReconcileStalePending(ctx context.Context) (int, error)
}

type Cache interface {
	GetBookingSnapshot(ctx context.Context, code string) (*domain.Booking, error)
	SetBookingSnapshot(ctx context.Context, b *domain.Booking) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Gateway interface {
	CreateSession(ctx context.Context, req midtrans.SessionRequest) (*midtrans.Session, error)
	QueryStatus(ctx context.Context, orderID string) (*midtrans.TransactionStatus, error)
	VerifySignature(n midtrans.Notification) bool
}

type CreateBookingInput struct {
	PackageID     int64           `json:"package_id"`
	Participants  int             `json:"participants"`
	Customer      domain.Customer `json:"customer"`
	ScheduleStart time.Time       `json:"schedule_start"`
	ScheduleEnd   time.Time       `json:"schedule_end"`
}

// StatusView is the discriminated status payload served to polling clients.
type StatusView struct {
	BookingCode      string               `json:"booking_code"`
	Status           domain.BookingStatus `json:"status"`
	PaymentStatus    domain.PaymentStatus `json:"payment_status"`
	PaymentMethod    string               `json:"payment_method,omitempty"`
	PaymentDate      *time.Time           `json:"payment_date,omitempty"`
	CanAccessVoucher bool                 `json:"can_access_voucher"`
	// Stale marks a view served from the last-known snapshot because the
	// store was unavailable.
	Stale bool `json:"stale"`
}

type BookingService struct {
	bookings           repository.BookingRepository
	packages           repository.PackageRepository
	cache              Cache
	gateway            Gateway
	producer           Producer
	paymentTopic       string
	notificationsTopic string
	retryPolicy        retry.Policy
	staleAfter         time.Duration
	verifyBase         string
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithVoucherVerifyBase(base string) BookingServiceOption {
	return func(s *BookingService) {
		s.verifyBase = strings.TrimRight(base, "/")
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	packages repository.PackageRepository,
	cache Cache,
	gateway Gateway,
	producer Producer,
	paymentTopic string,
	retryPolicy retry.Policy,
	staleAfter time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		packages:     packages,
		cache:        cache,
		gateway:      gateway,
		producer:     producer,
		paymentTopic: paymentTopic,
		retryPolicy:  retryPolicy,
		staleAfter:   staleAfter,
		verifyBase:   "https://vouchers.tripbooking.id/verify",
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.Participants < 1 {
		return nil, fmt.Errorf("%w: participants must be at least 1", domain.ErrValidation)
	}
	if input.Customer.Name == "" || input.Customer.Email == "" || input.Customer.Phone == "" {
		return nil, fmt.Errorf("%w: customer name, email and phone are required", domain.ErrValidation)
	}
	if input.ScheduleStart.IsZero() || input.ScheduleEnd.IsZero() || input.ScheduleEnd.Before(input.ScheduleStart) {
		return nil, fmt.Errorf("%w: invalid schedule", domain.ErrValidation)
	}

	pkg, err := s.packages.GetByID(ctx, input.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, fmt.Errorf("%w: package %d is not open for booking", domain.ErrValidation, input.PackageID)
	}
	if pkg.MaxParticipants > 0 && input.Participants > pkg.MaxParticipants {
		return nil, fmt.Errorf("%w: package allows at most %d participants", domain.ErrValidation, pkg.MaxParticipants)
	}

	booking := &domain.Booking{
		Code:          newCode("BOOK"),
		Package:       pkg.Snapshot(),
		Customer:      input.Customer,
		ScheduleStart: input.ScheduleStart,
		ScheduleEnd:   input.ScheduleEnd,
		Participants:  input.Participants,
		UnitPrice:     pkg.Price,
		TotalPrice:    pkg.Price * int64(input.Participants),
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}

	if err := s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		return s.bookings.Create(ctx, booking)
	}); err != nil {
		return nil, err
	}

	s.snapshot(ctx, booking)
	s.publish(ctx, kafka.EventBookingCreated, booking)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, code string) (*domain.Booking, error) {
	return s.bookings.GetByCode(ctx, code)
}

func (s *BookingService) RequestPaymentSession(ctx context.Context, code string) (*midtrans.Session, error) {
	booking, err := s.bookings.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if booking.PaymentStatus.IsSettled() {
		return nil, fmt.Errorf("%w: booking %s is already paid", domain.ErrPreconditionFailed, code)
	}

	// A fresh order id per session: the gateway refuses to reuse one after
	// a failed attempt. The booking code stays embedded so a notification
	// for a superseded id can still be routed.
	orderID := fmt.Sprintf("%s-%s", booking.Code, shortID())

	var session *midtrans.Session
	err = s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		var attemptErr error
		session, attemptErr = s.gateway.CreateSession(ctx, midtrans.SessionRequest{
			OrderID:      orderID,
			GrossAmount:  booking.TotalPrice,
			Customer:     booking.Customer,
			PackageName:  booking.Package.Name,
			UnitPrice:    booking.UnitPrice,
			Participants: booking.Participants,
		})
		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	if err := s.bookings.SetOrderID(ctx, code, orderID); err != nil {
		return nil, err
	}
	return session, nil
}

// GetPaymentStatus is the cheap path: store only, never the gateway. A store
// failure degrades to the last-known snapshot marked stale instead of
// inventing a record.
func (s *BookingService) GetPaymentStatus(ctx context.Context, code string) (*StatusView, error) {
	booking, err := s.bookings.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if s.cache != nil {
			if cached, cacheErr := s.cache.GetBookingSnapshot(ctx, code); cacheErr == nil && cached != nil {
				view := viewOf(cached)
				view.Stale = true
				return view, nil
			}
		}
		return nil, err
	}

	s.snapshot(ctx, booking)
	return viewOf(booking), nil
}

// CheckPaymentStatus forces reconciliation: the gateway's answer overwrites
// the stored state through the conditional monotonic update.
func (s *BookingService) CheckPaymentStatus(ctx context.Context, code string) (*StatusView, error) {
	booking, err := s.bookings.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if booking.OrderID == "" {
		// No payment session yet, nothing to reconcile against.
		return viewOf(booking), nil
	}

	var status *midtrans.TransactionStatus
	err = s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		var attemptErr error
		status, attemptErr = s.gateway.QueryStatus(ctx, booking.OrderID)
		return attemptErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Gateway never saw the order; the booking stays as stored.
			return viewOf(booking), nil
		}
		return nil, err
	}

	updated, err := s.apply(ctx, booking, domain.StatusUpdate{
		PaymentStatus: midtrans.MapStatus(status.TransactionStatus, status.FraudStatus),
		PaymentMethod: status.PaymentType,
		PaymentDate:   status.PaymentTime(),
	})
	if err != nil {
		return nil, err
	}
	return viewOf(updated), nil
}

func (s *BookingService) HandleNotification(ctx context.Context, n midtrans.Notification) error {
	if !s.gateway.VerifySignature(n) {
		return fmt.Errorf("%w: notification signature mismatch for order %s", domain.ErrValidation, n.OrderID)
	}

	booking, err := s.bookings.GetByOrderID(ctx, n.OrderID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		// The notification may be for an order id superseded by a newer
		// session; the embedded booking code still routes it.
		code, ok := bookingCodeFromOrderID(n.OrderID)
		if !ok {
			return err
		}
		booking, err = s.bookings.GetByCode(ctx, code)
		if err != nil {
			return err
		}
	}

	_, err = s.apply(ctx, booking, domain.StatusUpdate{
		PaymentStatus: midtrans.MapStatus(n.TransactionStatus, n.FraudStatus),
		PaymentMethod: n.PaymentType,
		PaymentDate:   n.PaymentTime(),
	})
	return err
}

func (s *BookingService) GenerateVoucher(ctx context.Context, code string) (*domain.Voucher, error) {
	booking, err := s.bookings.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !booking.CanAccessVoucher() {
		return nil, fmt.Errorf("%w: payment not yet confirmed for %s", domain.ErrPreconditionFailed, code)
	}

	voucherCode := booking.VoucherCode
	if voucherCode == "" {
		voucherCode = newCode("VCH")
	}
	updated, err := s.bookings.MarkVoucherGenerated(ctx, code, voucherCode)
	if err != nil {
		return nil, err
	}
	s.snapshot(ctx, updated)

	return &domain.Voucher{
		Code:          updated.VoucherCode,
		QRRef:         fmt.Sprintf("%s/%s", s.verifyBase, updated.VoucherCode),
		BookingCode:   updated.Code,
		CustomerName:  updated.Customer.Name,
		CustomerEmail: updated.Customer.Email,
		PackageName:   updated.Package.Name,
		Destination:   updated.Package.Destination,
		Participants:  updated.Participants,
		TotalPrice:    updated.TotalPrice,
		PaymentMethod: updated.PaymentMethod,
		ValidFrom:     updated.ScheduleStart,
		ValidUntil:    updated.ScheduleEnd,
		IssuedAt:      time.Now(),
	}, nil
}

// OverrideStatus is the out-of-band operator action and the only path that
// may leave a terminal state.
func (s *BookingService) OverrideStatus(ctx context.Context, code string, status domain.BookingStatus, paymentStatus domain.PaymentStatus) (*domain.Booking, error) {
	updated, err := s.bookings.OverrideStatus(ctx, code, status, paymentStatus)
	if err != nil {
		return nil, err
	}
	s.snapshot(ctx, updated)
	return updated, nil
}

// ReconcileStalePending rechecks long-pending bookings against the gateway.
// Run by the worker sweep.
func (s *BookingService) ReconcileStalePending(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.staleAfter)
	stale, err := s.bookings.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, b := range stale {
		view, err := s.CheckPaymentStatus(ctx, b.Code)
		if err != nil {
			log.Printf("reconcile %s: %v", b.Code, err)
			continue
		}
		if view.PaymentStatus.IsTerminal() {
			resolved++
		}
	}
	return resolved, nil
}

// apply runs the conditional update and publishes an event when the payment
// actually transitioned. A blocked or repeated write publishes nothing.
func (s *BookingService) apply(ctx context.Context, before *domain.Booking, upd domain.StatusUpdate) (*domain.Booking, error) {
	if upd.PaymentStatus == domain.PaymentStatusPending {
		// Nothing to reconcile; never write pending over anything.
		return before, nil
	}
	if upd.PaymentStatus == domain.PaymentStatusUnknown {
		// Surfaced to the caller verbatim but never persisted: an
		// unrecognized gateway status must not clobber the stored state.
		transient := *before
		transient.PaymentStatus = domain.PaymentStatusUnknown
		return &transient, nil
	}

	updated, err := s.bookings.ApplyStatusUpdate(ctx, before.Code, upd)
	if err != nil {
		return nil, err
	}
	s.snapshot(ctx, updated)

	if updated.PaymentStatus != before.PaymentStatus {
		switch {
		case updated.PaymentStatus.IsSettled():
			s.publish(ctx, kafka.EventPaymentSettled, updated)
		case updated.PaymentStatus.IsFailed():
			s.publish(ctx, kafka.EventPaymentFailed, updated)
		}
	}
	return updated, nil
}

func (s *BookingService) snapshot(ctx context.Context, b *domain.Booking) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetBookingSnapshot(ctx, b); err != nil {
		log.Printf("cache snapshot %s: %v", b.Code, err)
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.paymentTopic == "" {
		return
	}
	event := kafka.PaymentEvent{
		Type:          eventType,
		BookingCode:   booking.Code,
		OrderID:       booking.OrderID,
		Email:         booking.Customer.Email,
		PackageName:   booking.Package.Name,
		PaymentStatus: string(booking.PaymentStatus),
		Amount:        booking.TotalPrice,
		At:            time.Now(),
	}
	if err := s.producer.Publish(ctx, s.paymentTopic, booking.Code, event); err != nil {
		log.Printf("publish %s for %s: %v", eventType, booking.Code, err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, booking.Code, event); err != nil {
			log.Printf("publish %s notification for %s: %v", eventType, booking.Code, err)
		}
	}
}

func viewOf(b *domain.Booking) *StatusView {
	return &StatusView{
		BookingCode:      b.Code,
		Status:           b.Status,
		PaymentStatus:    b.PaymentStatus,
		PaymentMethod:    b.PaymentMethod,
		PaymentDate:      b.PaymentDate,
		CanAccessVoucher: b.CanAccessVoucher(),
	}
}

func newCode(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(shortID()))
}

func shortID() string {
	return uuid.NewString()[:8]
}

// bookingCodeFromOrderID recovers the booking code embedded in a gateway
// order id (BOOK-xxxxxxxx-yyyyyyyy).
func bookingCodeFromOrderID(orderID string) (string, bool) {
	parts := strings.Split(orderID, "-")
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "-" + parts[1], true
}

var _ BookingUseCase = (*BookingService)(nil)
