package service

import (
	"context"
	"time"

	"buydeals/internal/config"
	"buydeals/internal/model"
	"buydeals/internal/pricing"
	"buydeals/internal/provider"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockPaymentOrderRepository is a mock implementation of PaymentOrderRepository.
type MockPaymentOrderRepository struct {
	mock.Mock
}

func (m *MockPaymentOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPaymentOrderRepository) Create(ctx context.Context, order *model.PaymentOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockPaymentOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentOrder), args.Error(1)
}

func (m *MockPaymentOrderRepository) LockByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*model.PaymentOrder, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentOrder), args.Error(1)
}

func (m *MockPaymentOrderRepository) MarkSettled(ctx context.Context, tx pgx.Tx, orderID string, status model.PaymentStatus, transactionID string, response map[string]string) (bool, error) {
	args := m.Called(ctx, tx, orderID, status, transactionID, response)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentOrderRepository) MarkFulfillmentError(ctx context.Context, orderID string, status model.PaymentStatus, transactionID string, response map[string]string, reason string) (bool, error) {
	args := m.Called(ctx, orderID, status, transactionID, response, reason)
	return args.Bool(0), args.Error(1)
}

// MockDealRepository is a mock implementation of DealRepository.
type MockDealRepository struct {
	mock.Mock
}

func (m *MockDealRepository) ListActive(ctx context.Context, limit, offset int) ([]model.Deal, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Deal), args.Error(1)
}

func (m *MockDealRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Deal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deal), args.Error(1)
}

func (m *MockDealRepository) DecrementStock(ctx context.Context, tx pgx.Tx, dealID uuid.UUID, qty int) error {
	args := m.Called(ctx, tx, dealID, qty)
	return args.Error(0)
}

// MockCartRepository is a mock implementation of CartRepository.
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CartLine), args.Error(1)
}

func (m *MockCartRepository) ClearByUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockPurchaseRepository is a mock implementation of PurchaseRepository.
type MockPurchaseRepository struct {
	mock.Mock
}

func (m *MockPurchaseRepository) CreateBatch(ctx context.Context, tx pgx.Tx, purchases []model.Purchase) (int, error) {
	args := m.Called(ctx, tx, purchases)
	return args.Int(0), args.Error(1)
}

func (m *MockPurchaseRepository) ListByPaymentOrder(ctx context.Context, orderID string) ([]model.Purchase, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Purchase), args.Error(1)
}

// MockLoyaltyRepository is a mock implementation of LoyaltyRepository.
type MockLoyaltyRepository struct {
	mock.Mock
}

func (m *MockLoyaltyRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*model.LoyaltyAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoyaltyAccount), args.Error(1)
}

func (m *MockLoyaltyRepository) Hold(ctx context.Context, userID uuid.UUID, orderID string, points int, until time.Time) error {
	args := m.Called(ctx, userID, orderID, points, until)
	return args.Error(0)
}

func (m *MockLoyaltyRepository) ApplyOrder(ctx context.Context, tx pgx.Tx, userID uuid.UUID, orderID string, earned, spent int) (int, error) {
	args := m.Called(ctx, tx, userID, orderID, earned, spent)
	return args.Int(0), args.Error(1)
}

func (m *MockLoyaltyRepository) ReleaseHold(ctx context.Context, tx pgx.Tx, orderID string) (int64, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLoyaltyRepository) CancelHold(ctx context.Context, orderID string) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

// MockWheelRepository is a mock implementation of WheelRepository.
type MockWheelRepository struct {
	mock.Mock
}

func (m *MockWheelRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*model.WheelDiscount, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WheelDiscount), args.Error(1)
}

func (m *MockWheelRepository) Reserve(ctx context.Context, id, userID uuid.UUID, orderID string, until time.Time) (*model.WheelDiscount, error) {
	args := m.Called(ctx, id, userID, orderID, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WheelDiscount), args.Error(1)
}

func (m *MockWheelRepository) Redeem(ctx context.Context, tx pgx.Tx, orderID string) (int64, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWheelRepository) Release(ctx context.Context, tx pgx.Tx, orderID string) (int64, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWheelRepository) CancelReservation(ctx context.Context, orderID string) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

// MockProvider is a mock payment provider registered under name.
type MockProvider struct {
	mock.Mock
	name       string
	currencies []string
}

func newMockProvider(name string, currencies ...string) *MockProvider {
	return &MockProvider{name: name, currencies: currencies}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) SupportsCurrency(code string) bool {
	for _, c := range m.currencies {
		if c == code {
			return true
		}
	}
	return false
}

func (m *MockProvider) Initiate(ctx context.Context, order *model.PaymentOrder) (*provider.Checkout, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Checkout), args.Error(1)
}

func (m *MockProvider) ParseNotification(ctx context.Context, params map[string]string) (*provider.Notification, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Notification), args.Error(1)
}

// MockKeyedProvider is a MockProvider that also answers webhook handshakes.
type MockKeyedProvider struct {
	*MockProvider
}

func (m *MockKeyedProvider) WebhookKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, data any) error {
	args := m.Called(ctx, routingKey, data)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockPaymentService is a mock implementation of PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Initiate(ctx context.Context, providerName string, userID uuid.UUID, req *model.InitiatePaymentRequest) (*model.InitiatePaymentResponse, error) {
	args := m.Called(ctx, providerName, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InitiatePaymentResponse), args.Error(1)
}

func (m *MockPaymentService) GetOrder(ctx context.Context, userID uuid.UUID, orderID string) (*model.PaymentOrder, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentOrder), args.Error(1)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx; repositories are mocked so none are used.
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }

// mockRepos bundles one mock per repository.
type mockRepos struct {
	orders    *MockPaymentOrderRepository
	deals     *MockDealRepository
	carts     *MockCartRepository
	purchases *MockPurchaseRepository
	loyalty   *MockLoyaltyRepository
	wheels    *MockWheelRepository
}

func newMockRepos() *mockRepos {
	return &mockRepos{
		orders:    new(MockPaymentOrderRepository),
		deals:     new(MockDealRepository),
		carts:     new(MockCartRepository),
		purchases: new(MockPurchaseRepository),
		loyalty:   new(MockLoyaltyRepository),
		wheels:    new(MockWheelRepository),
	}
}

func (r *mockRepos) repositories() Repositories {
	return Repositories{
		PaymentOrders: r.orders,
		Deals:         r.deals,
		Carts:         r.carts,
		Purchases:     r.purchases,
		Loyalty:       r.loyalty,
		Wheels:        r.wheels,
	}
}

func (r *mockRepos) assertExpectations(t mock.TestingT) {
	r.orders.AssertExpectations(t)
	r.deals.AssertExpectations(t)
	r.carts.AssertExpectations(t)
	r.purchases.AssertExpectations(t)
	r.loyalty.AssertExpectations(t)
	r.wheels.AssertExpectations(t)
}

func testCalculator() *pricing.Calculator {
	return pricing.NewCalculator(config.CheckoutConfig{
		BaseCurrency: "EUR",
		ExchangeRates: map[string]decimal.Decimal{
			"USD": decimal.RequireFromString("1.08"),
		},
		PointsPerEuro: decimal.NewFromInt(1),
		PointValue:    decimal.RequireFromString("0.01"),
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
