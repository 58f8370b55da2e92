package domain

import "time"

// Voucher is the redeemable confirmation view, generated per request once a
// booking is settled. It is derived from the booking, not stored separately.
type Voucher struct {
	Code          string    `json:"code"`
	QRRef         string    `json:"qr_ref"`
	BookingCode   string    `json:"booking_code"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	PackageName   string    `json:"package_name"`
	Destination   string    `json:"destination"`
	Participants  int       `json:"participants"`
	TotalPrice    int64     `json:"total_price"`
	PaymentMethod string    `json:"payment_method"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidUntil    time.Time `json:"valid_until"`
	IssuedAt      time.Time `json:"issued_at"`
}
