package booking

import (
	"context"
	"testing"
	"time"

	"github.com/pandutama/tripbooking/internal/domain"
	"github.com/pandutama/tripbooking/internal/kafka"
	"github.com/pandutama/tripbooking/internal/midtrans"
	"github.com/pandutama/tripbooking/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) SetOrderID(ctx context.Context, code, orderID string) error {
	args := m.Called(ctx, code, orderID)
	return args.Error(0)
}

func (m *MockBookingRepository) ApplyStatusUpdate(ctx context.Context, code string, upd domain.StatusUpdate) (*domain.Booking, error) {
	args := m.Called(ctx, code, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) MarkVoucherGenerated(ctx context.Context, code, voucherCode string) (*domain.Booking, error) {
	args := m.Called(ctx, code, voucherCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) OverrideStatus(ctx context.Context, code string, status domain.BookingStatus, paymentStatus domain.PaymentStatus) (*domain.Booking, error) {
	args := m.Called(ctx, code, status, paymentStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListStalePending(ctx context.Context, before time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockPackageRepository struct {
	mock.Mock
}

func (m *MockPackageRepository) List(ctx context.Context) ([]domain.TourPackage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TourPackage), args.Error(1)
}

func (m *MockPackageRepository) GetByID(ctx context.Context, id int64) (*domain.TourPackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TourPackage), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetBookingSnapshot(ctx context.Context, code string) (*domain.Booking, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockCache) SetBookingSnapshot(ctx context.Context, b *domain.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(ctx context.Context, req midtrans.SessionRequest) (*midtrans.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*midtrans.Session), args.Error(1)
}

func (m *MockGateway) QueryStatus(ctx context.Context, orderID string) (*midtrans.TransactionStatus, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*midtrans.TransactionStatus), args.Error(1)
}

func (m *MockGateway) VerifySignature(n midtrans.Notification) bool {
	args := m.Called(n)
	return args.Bool(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func newTestService(bookings *MockBookingRepository, packages *MockPackageRepository, cache *MockCache, gateway *MockGateway, producer *MockProducer) *BookingService {
	return &BookingService{
		bookings:     bookings,
		packages:     packages,
		cache:        cache,
		gateway:      gateway,
		producer:     producer,
		paymentTopic: "payment-events",
		retryPolicy:  retry.Policy{MaxAttempts: 1},
		staleAfter:   time.Hour,
		verifyBase:   "https://vouchers.test/verify",
	}
}

func schedule() (time.Time, time.Time) {
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 3)
}

func testCustomer() domain.Customer {
	return domain.Customer{
		Name:    "Siti Rahma",
		Email:   "siti@example.com",
		Phone:   "+628123456789",
		Address: "Jl. Merdeka 1, Bandung",
	}
}

func TestBookingService_CreateBooking_Success(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockPackages := &MockPackageRepository{}
	mockCache := &MockCache{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookings, mockPackages, mockCache, &MockGateway{}, mockProducer)

	ctx := context.Background()
	start, end := schedule()
	input := CreateBookingInput{
		PackageID:     7,
		Participants:  2,
		Customer:      testCustomer(),
		ScheduleStart: start,
		ScheduleEnd:   end,
	}

	mockPackages.On("GetByID", mock.Anything, int64(7)).Return(&domain.TourPackage{
		ID:          7,
		Name:        "Bromo Sunrise",
		Destination: "Bromo",
		Price:       1_500_000,
		Active:      true,
	}, nil).Once()
	mockBookings.On("Create", mock.Anything, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()
	mockCache.On("SetBookingSnapshot", mock.Anything, mock.Anything).Return(nil).Once()
	mockProducer.On("Publish", mock.Anything, "payment-events", mock.Anything, mock.Anything).Return(nil).Once()

	booking, err := service.CreateBooking(ctx, input)

	assert.NoError(t, err)
	assert.NotNil(t, booking)
	assert.Equal(t, int64(1_500_000), booking.UnitPrice)
	assert.Equal(t, int64(3_000_000), booking.TotalPrice)
	assert.Equal(t, domain.BookingStatusPending, booking.Status)
	assert.Equal(t, domain.PaymentStatusPending, booking.PaymentStatus)
	assert.Contains(t, booking.Code, "BOOK-")
	assert.Equal(t, "Bromo Sunrise", booking.Package.Name)

	mockPackages.AssertExpectations(t)
	mockBookings.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_CreateBooking_ValidationErrors(t *testing.T) {
	service := newTestService(&MockBookingRepository{}, &MockPackageRepository{}, &MockCache{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	start, end := schedule()

	testCases := []struct {
		name        string
		input       CreateBookingInput
		expectedErr string
	}{
		{
			name: "zero participants",
			input: CreateBookingInput{
				PackageID: 7, Participants: 0, Customer: testCustomer(),
				ScheduleStart: start, ScheduleEnd: end,
			},
			expectedErr: "participants must be at least 1",
		},
		{
			name: "negative participants",
			input: CreateBookingInput{
				PackageID: 7, Participants: -2, Customer: testCustomer(),
				ScheduleStart: start, ScheduleEnd: end,
			},
			expectedErr: "participants must be at least 1",
		},
		{
			name: "missing email",
			input: CreateBookingInput{
				PackageID: 7, Participants: 1,
				Customer:      domain.Customer{Name: "Siti", Phone: "+62"},
				ScheduleStart: start, ScheduleEnd: end,
			},
			expectedErr: "customer name, email and phone are required",
		},
		{
			name: "schedule end before start",
			input: CreateBookingInput{
				PackageID: 7, Participants: 1, Customer: testCustomer(),
				ScheduleStart: end, ScheduleEnd: start,
			},
			expectedErr: "invalid schedule",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			booking, err := service.CreateBooking(ctx, tc.input)
			assert.Error(t, err)
			assert.Nil(t, booking)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}
}

func TestBookingService_CreateBooking_InactivePackage(t *testing.T) {
	mockPackages := &MockPackageRepository{}
	service := newTestService(&MockBookingRepository{}, mockPackages, &MockCache{}, &MockGateway{}, &MockProducer{})

	start, end := schedule()
	mockPackages.On("GetByID", mock.Anything, int64(7)).Return(&domain.TourPackage{ID: 7, Price: 100, Active: false}, nil).Once()

	booking, err := service.CreateBooking(context.Background(), CreateBookingInput{
		PackageID: 7, Participants: 1, Customer: testCustomer(),
		ScheduleStart: start, ScheduleEnd: end,
	})

	assert.Nil(t, booking)
	assert.ErrorIs(t, err, domain.ErrValidation)
	mockPackages.AssertExpectations(t)
}

func TestBookingService_RequestPaymentSession_Success(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookings, &MockPackageRepository{}, &MockCache{}, mockGateway, &MockProducer{})

	booking := &domain.Booking{
		Code:          "BOOK-AB12CD34",
		Customer:      testCustomer(),
		Package:       domain.PackageSnapshot{Name: "Bromo Sunrise"},
		Participants:  2,
		UnitPrice:     1_500_000,
		TotalPrice:    3_000_000,
		PaymentStatus: domain.PaymentStatusPending,
	}

	mockBookings.On("GetByCode", mock.Anything, "BOOK-AB12CD34").Return(booking, nil).Once()
	mockGateway.On("CreateSession", mock.Anything, mock.MatchedBy(func(req midtrans.SessionRequest) bool {
		return req.GrossAmount == 3_000_000 && req.Participants == 2
	})).Return(&midtrans.Session{Token: "snap-token", RedirectURL: "https://pay.test/redir", OrderID: "BOOK-AB12CD34-x"}, nil).Once()
	mockBookings.On("SetOrderID", mock.Anything, "BOOK-AB12CD34", mock.AnythingOfType("string")).Return(nil).Once()

	session, err := service.RequestPaymentSession(context.Background(), "BOOK-AB12CD34")

	assert.NoError(t, err)
	assert.Equal(t, "snap-token", session.Token)
	mockBookings.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
}

func TestBookingService_RequestPaymentSession_AlreadyPaid(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookings, &MockPackageRepository{}, &MockCache{}, mockGateway, &MockProducer{})

	mockBookings.On("GetByCode", mock.Anything, "BOOK-PAID").Return(&domain.Booking{
		Code:          "BOOK-PAID",
		PaymentStatus: domain.PaymentStatusSettlement,
	}, nil).Once()

	session, err := service.RequestPaymentSession(context.Background(), "BOOK-PAID")

	assert.Nil(t, session)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	mockGateway.AssertNotCalled(t, "CreateSession")
}

func TestBookingService_RequestPaymentSession_GatewayDown(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookings, &MockPackageRepository{}, &MockCache{}, mockGateway, &MockProducer{})

	mockBookings.On("GetByCode", mock.Anything, "BOOK-X").Return(&domain.Booking{
		Code:          "BOOK-X",
		PaymentStatus: domain.PaymentStatusPending,
	}, nil).Once()
	mockGateway.On("CreateSession", mock.Anything, mock.Anything).
		Return(nil, domain.ErrGateway).Once()

	session, err := service.RequestPaymentSession(context.Background(), "BOOK-X")

	assert.Nil(t, session)
	assert.ErrorIs(t, err, domain.ErrGateway)
	mockBookings.AssertNotCalled(t, "SetOrderID")
}

func TestBookingService_GetPaymentStatus_CheapPath(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, mockGateway, &MockProducer{})

	paidAt := time.Now()
	mockBookings.On("GetByCode", mock.Anything, "BOOK-OK").Return(&domain.Booking{
		Code:          "BOOK-OK",
		Status:        domain.BookingStatusConfirmed,
		PaymentStatus: domain.PaymentStatusSettlement,
		PaymentMethod: "bank_transfer",
		PaymentDate:   &paidAt,
	}, nil).Once()
	mockCache.On("SetBookingSnapshot", mock.Anything, mock.Anything).Return(nil).Once()

	view, err := service.GetPaymentStatus(context.Background(), "BOOK-OK")

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSettlement, view.PaymentStatus)
	assert.True(t, view.CanAccessVoucher)
	assert.False(t, view.Stale)
	// The cheap path must never touch the gateway.
	mockGateway.AssertNotCalled(t, "QueryStatus")
}

func TestBookingService_GetPaymentStatus_StaleFallback(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, &MockGateway{}, &MockProducer{})

	storeErr := domain.ErrUpstream
	mockBookings.On("GetByCode", mock.Anything, "BOOK-OK").Return(nil, storeErr).Once()
	mockCache.On("GetBookingSnapshot", mock.Anything, "BOOK-OK").Return(&domain.Booking{
		Code:          "BOOK-OK",
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}, nil).Once()

	view, err := service.GetPaymentStatus(context.Background(), "BOOK-OK")

	assert.NoError(t, err)
	assert.True(t, view.Stale)
	assert.Equal(t, domain.PaymentStatusPending, view.PaymentStatus)
}

func TestBookingService_GetPaymentStatus_NoSnapshot(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, &MockGateway{}, &MockProducer{})

	mockBookings.On("GetByCode", mock.Anything, "BOOK-OK").Return(nil, domain.ErrUpstream).Once()
	mockCache.On("GetBookingSnapshot", mock.Anything, "BOOK-OK").Return(nil, nil).Once()

	view, err := service.GetPaymentStatus(context.Background(), "BOOK-OK")

	assert.Nil(t, view)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestBookingService_CheckPaymentStatus_Settlement(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	mockGateway := &MockGateway{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, mockGateway, mockProducer)

	pending := &domain.Booking{
		Code:          "BOOK-AB12CD34",
		OrderID:       "BOOK-AB12CD34-a1b2c3d4",
		Customer:      testCustomer(),
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}
	settledAt := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	settled := &domain.Booking{
		Code:          "BOOK-AB12CD34",
		OrderID:       pending.OrderID,
		Customer:      pending.Customer,
		Status:        domain.BookingStatusConfirmed,
		PaymentStatus: domain.PaymentStatusSettlement,
		PaymentMethod: "gopay",
		PaymentDate:   &settledAt,
	}

	mockBookings.On("GetByCode", mock.Anything, "BOOK-AB12CD34").Return(pending, nil).Once()
	mockGateway.On("QueryStatus", mock.Anything, pending.OrderID).Return(&midtrans.TransactionStatus{
		OrderID:           pending.OrderID,
		TransactionStatus: "settlement",
		PaymentType:       "gopay",
		SettlementTime:    "2026-09-01 10:30:00",
	}, nil).Once()
	mockBookings.On("ApplyStatusUpdate", mock.Anything, "BOOK-AB12CD34", mock.MatchedBy(func(upd domain.StatusUpdate) bool {
		return upd.PaymentStatus == domain.PaymentStatusSettlement && upd.PaymentMethod == "gopay"
	})).Return(settled, nil).Once()
	mockCache.On("SetBookingSnapshot", mock.Anything, settled).Return(nil).Once()
	mockProducer.On("Publish", mock.Anything, "payment-events", "BOOK-AB12CD34", mock.MatchedBy(func(v interface{}) bool {
		event, ok := v.(kafka.PaymentEvent)
		return ok && event.Type == kafka.EventPaymentSettled
	})).Return(nil).Once()

	view, err := service.CheckPaymentStatus(context.Background(), "BOOK-AB12CD34")

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSettlement, view.PaymentStatus)
	assert.Equal(t, domain.BookingStatusConfirmed, view.Status)
	assert.True(t, view.CanAccessVoucher)

	mockBookings.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_CheckPaymentStatus_AlreadyTerminalIsIdempotent(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	mockGateway := &MockGateway{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, mockGateway, mockProducer)

	settled := &domain.Booking{
		Code:          "BOOK-DONE",
		OrderID:       "BOOK-DONE-1",
		Status:        domain.BookingStatusConfirmed,
		PaymentStatus: domain.PaymentStatusSettlement,
	}

	mockBookings.On("GetByCode", mock.Anything, "BOOK-DONE").Return(settled, nil).Once()
	mockGateway.On("QueryStatus", mock.Anything, "BOOK-DONE-1").Return(&midtrans.TransactionStatus{
		OrderID:           "BOOK-DONE-1",
		TransactionStatus: "settlement",
	}, nil).Once()
	// The conditional update matches payment_status=$new and leaves the row
	// as it was.
	mockBookings.On("ApplyStatusUpdate", mock.Anything, "BOOK-DONE", mock.Anything).Return(settled, nil).Once()
	mockCache.On("SetBookingSnapshot", mock.Anything, settled).Return(nil).Once()

	view, err := service.CheckPaymentStatus(context.Background(), "BOOK-DONE")

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSettlement, view.PaymentStatus)
	// No transition happened, so nothing is published.
	mockProducer.AssertNotCalled(t, "Publish")
}

func TestBookingService_CheckPaymentStatus_UnknownStatusNotPersisted(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookings, &MockPackageRepository{}, &MockCache{}, mockGateway, &MockProducer{})

	pending := &domain.Booking{
		Code:          "BOOK-W",
		OrderID:       "BOOK-W-1",
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}

	mockBookings.On("GetByCode", mock.Anything, "BOOK-W").Return(pending, nil).Once()
	mockGateway.On("QueryStatus", mock.Anything, "BOOK-W-1").Return(&midtrans.TransactionStatus{
		OrderID:           "BOOK-W-1",
		TransactionStatus: "refund_in_progress",
	}, nil).Once()

	view, err := service.CheckPaymentStatus(context.Background(), "BOOK-W")

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusUnknown, view.PaymentStatus)
	assert.False(t, view.CanAccessVoucher)
	mockBookings.AssertNotCalled(t, "ApplyStatusUpdate")
}

func TestBookingService_CheckPaymentStatus_GatewayForgotOrder(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookings, &MockPackageRepository{}, &MockCache{}, mockGateway, &MockProducer{})
	service.retryPolicy = retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	mockBookings.On("GetByCode", mock.Anything, "BOOK-F").Return(&domain.Booking{
		Code:          "BOOK-F",
		OrderID:       "BOOK-F-1",
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}, nil).Once()
	// A 404 is a definitive answer; the retry budget must not be spent on it.
	mockGateway.On("QueryStatus", mock.Anything, "BOOK-F-1").Return(nil, domain.ErrNotFound).Once()

	view, err := service.CheckPaymentStatus(context.Background(), "BOOK-F")

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, view.PaymentStatus)
	mockGateway.AssertExpectations(t)
}

func TestBookingService_CheckPaymentStatus_NoSessionYet(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookings, &MockPackageRepository{}, &MockCache{}, mockGateway, &MockProducer{})

	mockBookings.On("GetByCode", mock.Anything, "BOOK-NEW").Return(&domain.Booking{
		Code:          "BOOK-NEW",
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}, nil).Once()

	view, err := service.CheckPaymentStatus(context.Background(), "BOOK-NEW")

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, view.PaymentStatus)
	mockGateway.AssertNotCalled(t, "QueryStatus")
}

func TestBookingService_HandleNotification_Expire(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	mockGateway := &MockGateway{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, mockGateway, mockProducer)

	notification := midtrans.Notification{
		OrderID:           "BOOK-E-1",
		StatusCode:        "407",
		GrossAmount:       "3000000.00",
		SignatureKey:      "sig",
		TransactionStatus: "expire",
		PaymentType:       "bank_transfer",
	}
	pending := &domain.Booking{
		Code:          "BOOK-E",
		OrderID:       "BOOK-E-1",
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}
	expired := &domain.Booking{
		Code:          "BOOK-E",
		OrderID:       "BOOK-E-1",
		Status:        domain.BookingStatusCancelled,
		PaymentStatus: domain.PaymentStatusExpire,
		PaymentMethod: "bank_transfer",
	}

	mockGateway.On("VerifySignature", notification).Return(true).Once()
	mockBookings.On("GetByOrderID", mock.Anything, "BOOK-E-1").Return(pending, nil).Once()
	mockBookings.On("ApplyStatusUpdate", mock.Anything, "BOOK-E", mock.MatchedBy(func(upd domain.StatusUpdate) bool {
		return upd.PaymentStatus == domain.PaymentStatusExpire
	})).Return(expired, nil).Once()
	mockCache.On("SetBookingSnapshot", mock.Anything, expired).Return(nil).Once()
	mockProducer.On("Publish", mock.Anything, "payment-events", "BOOK-E", mock.MatchedBy(func(v interface{}) bool {
		event, ok := v.(kafka.PaymentEvent)
		return ok && event.Type == kafka.EventPaymentFailed
	})).Return(nil).Once()

	err := service.HandleNotification(context.Background(), notification)

	assert.NoError(t, err)
	mockBookings.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_HandleNotification_SupersededOrderID(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	mockGateway := &MockGateway{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, mockGateway, mockProducer)

	// The customer paid on an earlier session; the stored order id has since
	// been replaced by a retry.
	notification := midtrans.Notification{
		OrderID:           "BOOK-AB12CD34-old1",
		StatusCode:        "200",
		GrossAmount:       "3000000.00",
		SignatureKey:      "sig",
		TransactionStatus: "settlement",
		PaymentType:       "bank_transfer",
	}
	current := &domain.Booking{
		Code:          "BOOK-AB12CD34",
		OrderID:       "BOOK-AB12CD34-new2",
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}
	settled := &domain.Booking{
		Code:          "BOOK-AB12CD34",
		OrderID:       "BOOK-AB12CD34-new2",
		Status:        domain.BookingStatusConfirmed,
		PaymentStatus: domain.PaymentStatusSettlement,
		PaymentMethod: "bank_transfer",
	}

	mockGateway.On("VerifySignature", notification).Return(true).Once()
	mockBookings.On("GetByOrderID", mock.Anything, "BOOK-AB12CD34-old1").Return(nil, domain.ErrNotFound).Once()
	mockBookings.On("GetByCode", mock.Anything, "BOOK-AB12CD34").Return(current, nil).Once()
	mockBookings.On("ApplyStatusUpdate", mock.Anything, "BOOK-AB12CD34", mock.MatchedBy(func(upd domain.StatusUpdate) bool {
		return upd.PaymentStatus == domain.PaymentStatusSettlement
	})).Return(settled, nil).Once()
	mockCache.On("SetBookingSnapshot", mock.Anything, settled).Return(nil).Once()
	mockProducer.On("Publish", mock.Anything, "payment-events", "BOOK-AB12CD34", mock.Anything).Return(nil).Once()

	err := service.HandleNotification(context.Background(), notification)

	assert.NoError(t, err)
	mockBookings.AssertExpectations(t)
}

func TestBookingService_HandleNotification_UnroutableOrderID(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookings, &MockPackageRepository{}, &MockCache{}, mockGateway, &MockProducer{})

	notification := midtrans.Notification{OrderID: "garbage", SignatureKey: "sig"}
	mockGateway.On("VerifySignature", notification).Return(true).Once()
	mockBookings.On("GetByOrderID", mock.Anything, "garbage").Return(nil, domain.ErrNotFound).Once()

	err := service.HandleNotification(context.Background(), notification)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	mockBookings.AssertNotCalled(t, "GetByCode")
}

func TestBookingService_HandleNotification_BadSignature(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookings, &MockPackageRepository{}, &MockCache{}, mockGateway, &MockProducer{})

	notification := midtrans.Notification{OrderID: "BOOK-E-1", SignatureKey: "forged"}
	mockGateway.On("VerifySignature", notification).Return(false).Once()

	err := service.HandleNotification(context.Background(), notification)

	assert.ErrorIs(t, err, domain.ErrValidation)
	mockBookings.AssertNotCalled(t, "GetByOrderID")
}

func TestBookingService_GenerateVoucher_Success(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, &MockGateway{}, &MockProducer{})

	start, end := schedule()
	settled := &domain.Booking{
		Code:          "BOOK-V",
		Customer:      testCustomer(),
		Package:       domain.PackageSnapshot{Name: "Bromo Sunrise", Destination: "Bromo"},
		ScheduleStart: start,
		ScheduleEnd:   end,
		Participants:  2,
		TotalPrice:    3_000_000,
		Status:        domain.BookingStatusConfirmed,
		PaymentStatus: domain.PaymentStatusSettlement,
		PaymentMethod: "gopay",
	}
	marked := *settled
	marked.VoucherGenerated = true
	marked.VoucherCode = "VCH-11AA22BB"

	mockBookings.On("GetByCode", mock.Anything, "BOOK-V").Return(settled, nil).Once()
	mockBookings.On("MarkVoucherGenerated", mock.Anything, "BOOK-V", mock.AnythingOfType("string")).Return(&marked, nil).Once()
	mockCache.On("SetBookingSnapshot", mock.Anything, &marked).Return(nil).Once()

	v, err := service.GenerateVoucher(context.Background(), "BOOK-V")

	assert.NoError(t, err)
	assert.Equal(t, "VCH-11AA22BB", v.Code)
	assert.Equal(t, "https://vouchers.test/verify/VCH-11AA22BB", v.QRRef)
	assert.Equal(t, start, v.ValidFrom)
	assert.Equal(t, end, v.ValidUntil)
	mockBookings.AssertExpectations(t)
}

func TestBookingService_GenerateVoucher_PreconditionFailed(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	service := newTestService(mockBookings, &MockPackageRepository{}, &MockCache{}, &MockGateway{}, &MockProducer{})

	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusPending,
		domain.PaymentStatusDeny,
		domain.PaymentStatusCancel,
		domain.PaymentStatusExpire,
		domain.PaymentStatusFailure,
		domain.PaymentStatusUnknown,
	} {
		t.Run(string(status), func(t *testing.T) {
			mockBookings.On("GetByCode", mock.Anything, "BOOK-V").Return(&domain.Booking{
				Code:          "BOOK-V",
				PaymentStatus: status,
			}, nil).Once()

			v, err := service.GenerateVoucher(context.Background(), "BOOK-V")

			assert.Nil(t, v)
			assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
		})
	}
	mockBookings.AssertNotCalled(t, "MarkVoucherGenerated")
}

func TestBookingService_GenerateVoucher_ReusesExistingCode(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, &MockGateway{}, &MockProducer{})

	settled := &domain.Booking{
		Code:             "BOOK-V",
		PaymentStatus:    domain.PaymentStatusCapture,
		VoucherGenerated: true,
		VoucherCode:      "VCH-FIRST",
	}

	mockBookings.On("GetByCode", mock.Anything, "BOOK-V").Return(settled, nil).Once()
	mockBookings.On("MarkVoucherGenerated", mock.Anything, "BOOK-V", "VCH-FIRST").Return(settled, nil).Once()
	mockCache.On("SetBookingSnapshot", mock.Anything, settled).Return(nil).Once()

	v, err := service.GenerateVoucher(context.Background(), "BOOK-V")

	assert.NoError(t, err)
	assert.Equal(t, "VCH-FIRST", v.Code)
	mockBookings.AssertExpectations(t)
}

func TestBookingService_ReconcileStalePending(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockCache := &MockCache{}
	mockGateway := &MockGateway{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookings, &MockPackageRepository{}, mockCache, mockGateway, mockProducer)

	stale := []domain.Booking{
		{Code: "BOOK-1", OrderID: "BOOK-1-1", Status: domain.BookingStatusPending, PaymentStatus: domain.PaymentStatusPending},
		{Code: "BOOK-2", OrderID: "BOOK-2-1", Status: domain.BookingStatusPending, PaymentStatus: domain.PaymentStatusPending},
	}
	expired := &domain.Booking{Code: "BOOK-1", OrderID: "BOOK-1-1", Status: domain.BookingStatusCancelled, PaymentStatus: domain.PaymentStatusExpire}

	mockBookings.On("ListStalePending", mock.Anything, mock.AnythingOfType("time.Time")).Return(stale, nil).Once()

	mockBookings.On("GetByCode", mock.Anything, "BOOK-1").Return(&stale[0], nil).Once()
	mockGateway.On("QueryStatus", mock.Anything, "BOOK-1-1").Return(&midtrans.TransactionStatus{TransactionStatus: "expire"}, nil).Once()
	mockBookings.On("ApplyStatusUpdate", mock.Anything, "BOOK-1", mock.Anything).Return(expired, nil).Once()
	mockCache.On("SetBookingSnapshot", mock.Anything, expired).Return(nil).Once()
	mockProducer.On("Publish", mock.Anything, "payment-events", "BOOK-1", mock.Anything).Return(nil).Once()

	mockBookings.On("GetByCode", mock.Anything, "BOOK-2").Return(&stale[1], nil).Once()
	mockGateway.On("QueryStatus", mock.Anything, "BOOK-2-1").Return(&midtrans.TransactionStatus{TransactionStatus: "pending"}, nil).Once()

	resolved, err := service.ReconcileStalePending(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, resolved)
	mockBookings.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
}
