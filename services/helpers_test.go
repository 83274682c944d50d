package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Govind-619/DonateKart/config"
	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test_razorpay_secret"

func init() {
	utils.SetLogOutput(io.Discard)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedBuyer(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	user := models.User{Username: name, Email: name + "@example.com", FirstName: "Test", LastName: name}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func sessionFor(user models.User) Session {
	return Session{BuyerID: user.ID, SessionID: uuid.New().String(), RequestID: "test"}
}

func validAddressFields() models.AddressFields {
	return models.AddressFields{
		FullName:   "Asha Rao",
		Phone:      "9876543210",
		Line:       "12 MG Road",
		Landmark:   "Near City Mall",
		City:       "bengaluru",
		State:      "karnataka",
		PostalCode: "560001",
	}
}

func seedCart(t *testing.T, db *gorm.DB, userID uint, lines ...models.CartLine) {
	t.Helper()
	for _, line := range lines {
		item := models.CartItem{
			UserID:      userID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			NGOName:     line.NGOName,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
		}
		require.NoError(t, db.Create(&item).Error)
	}
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon models.Coupon) models.Coupon {
	t.Helper()
	active := coupon.IsActive
	coupon.IsActive = true
	require.NoError(t, db.Create(&coupon).Error)
	if !active {
		require.NoError(t, db.Model(&coupon).Update("is_active", false).Error)
		coupon.IsActive = false
	}
	return coupon
}

func line(id uint, name, price string, qty int) models.CartLine {
	return models.CartLine{ProductID: id, ProductName: name, NGOName: "Helping Hands", UnitPrice: dec(price), Quantity: qty}
}

// fakeOrderClient stands in for the Razorpay orders API
type fakeOrderClient struct {
	mu    sync.Mutex
	calls []map[string]interface{}
	err   error

	// when gate is set, Create signals entered and blocks until gate closes
	gate    chan struct{}
	entered chan struct{}
}

// hold makes the next Create calls wait until the returned release runs
func (f *fakeOrderClient) hold() (release func()) {
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 10)
	return func() { close(f.gate) }
}

func (f *fakeOrderClient) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, data)
	return map[string]interface{}{
		"id":     fmt.Sprintf("order_test_%d", len(f.calls)),
		"amount": data["amount"],
		"status": "created",
	}, nil
}

func (f *fakeOrderClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeCoupons is an in-memory CouponLookup
type fakeCoupons struct {
	mu       sync.Mutex
	coupons  map[string]*models.Coupon
	lastUsed map[uint]time.Time
	gates    map[string]chan struct{}
	entered  chan string
}

func newFakeCoupons(coupons ...models.Coupon) *fakeCoupons {
	f := &fakeCoupons{
		coupons:  make(map[string]*models.Coupon),
		lastUsed: make(map[uint]time.Time),
		gates:    make(map[string]chan struct{}),
		entered:  make(chan string, 10),
	}
	for i := range coupons {
		c := coupons[i]
		if c.ID == 0 {
			c.ID = uint(i + 1)
		}
		f.coupons[c.Code] = &c
	}
	return f
}

// hold makes FindByCode for code block until the returned func is called
func (f *fakeCoupons) hold(code string) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[code] = gate
	f.mu.Unlock()
	return func() { close(gate) }
}

func (f *fakeCoupons) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	f.mu.Lock()
	gate := f.gates[code]
	coupon := f.coupons[code]
	f.mu.Unlock()

	select {
	case f.entered <- code:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if coupon == nil {
		return nil, nil
	}
	c := *coupon
	return &c, nil
}

func (f *fakeCoupons) LastUsedAt(_ context.Context, _ uint, couponID uint) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if at, ok := f.lastUsed[couponID]; ok {
		return &at, nil
	}
	return nil, nil
}

func (f *fakeCoupons) ListActive(context.Context) ([]models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Coupon
	for _, c := range f.coupons {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

type countingVerifier struct {
	inner *PaymentVerifier
	calls int32
}

func (v *countingVerifier) Verify(paymentID, gatewayOrderID, signature string) (VerificationResult, error) {
	atomic.AddInt32(&v.calls, 1)
	return v.inner.Verify(paymentID, gatewayOrderID, signature)
}

func (v *countingVerifier) count() int {
	return int(atomic.LoadInt32(&v.calls))
}

type countingCommitter struct {
	inner *OrderCommitter
	err   error
	calls int32

	mu   sync.Mutex
	seen []Session
}

func (c *countingCommitter) Commit(ctx context.Context, s Session, req CommitRequest) (*models.Order, bool, error) {
	atomic.AddInt32(&c.calls, 1)
	c.mu.Lock()
	c.seen = append(c.seen, s)
	c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	return c.inner.Commit(ctx, s, req)
}

func (c *countingCommitter) count() int {
	return int(atomic.LoadInt32(&c.calls))
}

func (c *countingCommitter) sessions() []Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Session(nil), c.seen...)
}

type fakeNotifier struct {
	placed chan *models.Order
	alerts chan *models.ReconciliationCase
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		placed: make(chan *models.Order, 10),
		alerts: make(chan *models.ReconciliationCase, 10),
	}
}

func (n *fakeNotifier) OrderPlaced(_ context.Context, order *models.Order) error {
	n.placed <- order
	return nil
}

func (n *fakeNotifier) ReconciliationNeeded(_ context.Context, rc *models.ReconciliationCase) error {
	n.alerts <- rc
	return nil
}
