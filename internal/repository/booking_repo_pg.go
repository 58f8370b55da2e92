package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pandutama/tripbooking/internal/domain"
)

// DB is the subset of pgxpool.Pool the repositories use. Tests substitute a
// pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByCode(ctx context.Context, code string) (*domain.Booking, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error)
	SetOrderID(ctx context.Context, code, orderID string) error
	// ApplyStatusUpdate performs the conditional monotonic write: the new
	// payment status lands only while the current one is still pending or
	// already equals the new value. A blocked write is not an error; the
	// current row is returned unchanged.
	ApplyStatusUpdate(ctx context.Context, code string, upd domain.StatusUpdate) (*domain.Booking, error)
	MarkVoucherGenerated(ctx context.Context, code, voucherCode string) (*domain.Booking, error)
	OverrideStatus(ctx context.Context, code string, status domain.BookingStatus, paymentStatus domain.PaymentStatus) (*domain.Booking, error)
	ListStalePending(ctx context.Context, before time.Time) ([]domain.Booking, error)
}

const bookingColumns = `id, code, package_id, package_name, package_destination,
	customer_name, customer_email, customer_phone, customer_address, customer_notes,
	schedule_start, schedule_end, participants, unit_price, total_price,
	status, payment_status, payment_method, payment_date, order_id,
	voucher_generated, voucher_code, created_at, updated_at`

type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	b.Status = domain.BookingStatusPending
	b.PaymentStatus = domain.PaymentStatusPending
	err := r.db.QueryRow(ctx, `INSERT INTO bookings
		(code, package_id, package_name, package_destination,
		 customer_name, customer_email, customer_phone, customer_address, customer_notes,
		 schedule_start, schedule_end, participants, unit_price, total_price,
		 status, payment_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id, created_at, updated_at`,
		b.Code, b.Package.PackageID, b.Package.Name, b.Package.Destination,
		b.Customer.Name, b.Customer.Email, b.Customer.Phone, b.Customer.Address, b.Customer.Notes,
		b.ScheduleStart, b.ScheduleEnd, b.Participants, b.UnitPrice, b.TotalPrice,
		b.Status, b.PaymentStatus).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert booking: %v", domain.ErrUpstream, err)
	}
	return nil
}

func (r *PGBookingRepository) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE code=$1`, code)
	return scanBooking(row)
}

func (r *PGBookingRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE order_id=$1`, orderID)
	return scanBooking(row)
}

func (r *PGBookingRepository) SetOrderID(ctx context.Context, code, orderID string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET order_id=$1, updated_at=now() WHERE code=$2`, orderID, code)
	if err != nil {
		return fmt.Errorf("%w: set order id: %v", domain.ErrUpstream, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGBookingRepository) ApplyStatusUpdate(ctx context.Context, code string, upd domain.StatusUpdate) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings SET
			payment_status=$1,
			status=$2,
			payment_method=COALESCE(NULLIF($3,''), payment_method),
			payment_date=COALESCE($4, payment_date),
			updated_at=now()
		WHERE code=$5 AND (payment_status='pending' OR payment_status=$1)
		RETURNING `+bookingColumns,
		upd.PaymentStatus, domain.LifecycleFor(upd.PaymentStatus), upd.PaymentMethod, upd.PaymentDate, code)
	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	// Either the booking does not exist or the write was blocked by the
	// monotonicity guard. Re-read to tell the two apart.
	return r.GetByCode(ctx, code)
}

func (r *PGBookingRepository) MarkVoucherGenerated(ctx context.Context, code, voucherCode string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings SET
			voucher_generated=true,
			voucher_code=CASE WHEN voucher_code='' THEN $1 ELSE voucher_code END,
			updated_at=now()
		WHERE code=$2 AND payment_status IN ('settlement','capture')
		RETURNING `+bookingColumns, voucherCode, code)
	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, getErr := r.GetByCode(ctx, code); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: payment not settled for %s", domain.ErrPreconditionFailed, code)
}

// OverrideStatus is the out-of-band operator action. It deliberately skips
// the monotonicity guard.
func (r *PGBookingRepository) OverrideStatus(ctx context.Context, code string, status domain.BookingStatus, paymentStatus domain.PaymentStatus) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings SET status=$1, payment_status=$2, updated_at=now()
		WHERE code=$3 RETURNING `+bookingColumns, status, paymentStatus, code)
	return scanBooking(row)
}

func (r *PGBookingRepository) ListStalePending(ctx context.Context, before time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE payment_status='pending' AND order_id <> '' AND created_at <= $1`, before)
	if err != nil {
		return nil, fmt.Errorf("%w: list stale pending: %v", domain.ErrUpstream, err)
	}
	defer rows.Close()

	var stale []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, *b)
	}
	return stale, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(&b.ID, &b.Code, &b.Package.PackageID, &b.Package.Name, &b.Package.Destination,
		&b.Customer.Name, &b.Customer.Email, &b.Customer.Phone, &b.Customer.Address, &b.Customer.Notes,
		&b.ScheduleStart, &b.ScheduleEnd, &b.Participants, &b.UnitPrice, &b.TotalPrice,
		&b.Status, &b.PaymentStatus, &b.PaymentMethod, &b.PaymentDate, &b.OrderID,
		&b.VoucherGenerated, &b.VoucherCode, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scan booking: %v", domain.ErrUpstream, err)
	}
	b.Package.Price = b.UnitPrice
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
