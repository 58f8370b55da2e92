package domain

import "time"

// PaymentStatus is the fine-grained payment lifecycle reported by the
// gateway. Only "pending" and "unknown" are non-terminal.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSettlement PaymentStatus = "settlement"
	PaymentStatusCapture    PaymentStatus = "capture"
	PaymentStatusDeny       PaymentStatus = "deny"
	PaymentStatusCancel     PaymentStatus = "cancel"
	PaymentStatusExpire     PaymentStatus = "expire"
	PaymentStatusFailure    PaymentStatus = "failure"
	// PaymentStatusUnknown buckets gateway statuses outside the known
	// vocabulary. It is never coerced into pending or failure.
	PaymentStatusUnknown PaymentStatus = "unknown"
)

// IsSettled reports whether the payment reached a terminal-success state.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusSettlement || s == PaymentStatusCapture
}

// IsFailed reports whether the payment reached a terminal-failure state.
func (s PaymentStatus) IsFailed() bool {
	switch s {
	case PaymentStatusDeny, PaymentStatusCancel, PaymentStatusExpire, PaymentStatusFailure:
		return true
	}
	return false
}

// IsTerminal reports whether no further automatic transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s.IsSettled() || s.IsFailed()
}

// BookingStatus is the coarse booking lifecycle. It mirrors PaymentStatus:
// confirmed once settled, cancelled on terminal payment failure. Completed is
// only ever set by an admin override.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// LifecycleFor derives the booking status correlated with a payment status.
// Non-terminal payment states leave the lifecycle at pending.
func LifecycleFor(s PaymentStatus) BookingStatus {
	switch {
	case s.IsSettled():
		return BookingStatusConfirmed
	case s.IsFailed():
		return BookingStatusCancelled
	default:
		return BookingStatusPending
	}
}

// PackageSnapshot is the slice of a tour package copied onto a booking at
// creation time. Later catalog edits never touch it.
type PackageSnapshot struct {
	PackageID   int64  `json:"package_id"`
	Name        string `json:"name"`
	Destination string `json:"destination"`
	Price       int64  `json:"price"`
}

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes,omitempty"`
}

type Booking struct {
	ID               int64           `json:"id"`
	Code             string          `json:"code"`
	Package          PackageSnapshot `json:"package"`
	Customer         Customer        `json:"customer"`
	ScheduleStart    time.Time       `json:"schedule_start"`
	ScheduleEnd      time.Time       `json:"schedule_end"`
	Participants     int             `json:"participants"`
	UnitPrice        int64           `json:"unit_price"`
	TotalPrice       int64           `json:"total_price"`
	Status           BookingStatus   `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentDate      *time.Time      `json:"payment_date,omitempty"`
	OrderID          string          `json:"order_id,omitempty"`
	VoucherGenerated bool            `json:"voucher_generated"`
	VoucherCode      string          `json:"voucher_code,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CanAccessVoucher reports whether voucher generation is permitted.
func (b *Booking) CanAccessVoucher() bool {
	return b.PaymentStatus.IsSettled()
}

// StatusUpdate is an authoritative payment state observed from the gateway,
// applied to a booking through the conditional monotonic update.
type StatusUpdate struct {
	PaymentStatus PaymentStatus
	PaymentMethod string
	PaymentDate   *time.Time
}
