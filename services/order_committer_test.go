package services

import (
	"context"
	"testing"

	"github.com/Govind-619/DonateKart/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type commitFixture struct {
	db        *gorm.DB
	committer *OrderCommitter
	session   Session
	request   CommitRequest
}

func newCommitFixture(t *testing.T) *commitFixture {
	t.Helper()
	db := newTestDB(t)
	buyer := seedBuyer(t, db, "asha")
	s := sessionFor(buyer)
	ctx := context.Background()

	address, err := NewAddressRegistry(db).Create(ctx, s, validAddressFields())
	require.NoError(t, err)
	seedCart(t, db, buyer.ID, line(1, "School Kit", "400", 2), line(2, "Blanket", "200", 1))
	seedCoupon(t, db, testCoupon("SAVE10", "10", "80", "0"))

	engine := NewPricingEngine(NewGormCouponStore(db), dec("50"))
	lines, err := NewGormCartSource(db).Lines(ctx, buyer.ID)
	require.NoError(t, err)
	snapshot, err := engine.PriceCart(ctx, s, lines, "SAVE10")
	require.NoError(t, err)

	gateway := NewPaymentGatewayAdapter(db, &fakeOrderClient{}, "rzp_test_key")
	intent, err := gateway.CreateIntent(ctx, s, "attempt-1", snapshot.GrandTotal, "INR", true)
	require.NoError(t, err)

	return &commitFixture{
		db:        db,
		committer: NewOrderCommitter(db, "INR"),
		session:   s,
		request: CommitRequest{
			AttemptID:      "attempt-1",
			AddressID:      address.ID,
			CouponCode:     snapshot.CouponCode,
			PaymentID:      "pay_1",
			GatewayOrderID: intent.RazorpayOrderID,
			Amount:         snapshot.GrandTotal,
			Signature:      SignPayment(testSecret, intent.RazorpayOrderID, "pay_1"),
			Snapshot:       snapshot,
		},
	}
}

func TestOrderCommitter_Commit(t *testing.T) {
	f := newCommitFixture(t)

	order, created, err := f.committer.Commit(context.Background(), f.session, f.request)
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, models.OrderStatusPlaced, order.Status)
	assert.Equal(t, "970.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, "80.00", order.Discount.StringFixed(2))
	assert.Equal(t, "pay_1", order.PaymentID)
	require.NotNil(t, order.CouponCode)
	assert.Equal(t, "SAVE10", *order.CouponCode)
	assert.Len(t, order.OrderItems, 2)
	assert.Equal(t, f.request.AddressID, order.Address.ID)

	var usages int64
	f.db.Model(&models.CouponUsage{}).Where("user_id = ? AND order_id = ?", f.session.BuyerID, order.ID).Count(&usages)
	assert.Equal(t, int64(1), usages)

	var cartItems int64
	f.db.Model(&models.CartItem{}).Where("user_id = ?", f.session.BuyerID).Count(&cartItems)
	assert.Zero(t, cartItems)

	var intent models.PaymentIntent
	require.NoError(t, f.db.Where("razorpay_order_id = ?", f.request.GatewayOrderID).First(&intent).Error)
	assert.Equal(t, models.PaymentIntentCaptured, intent.Status)
}

func TestOrderCommitter_IdempotentOnPayment(t *testing.T) {
	f := newCommitFixture(t)
	ctx := context.Background()

	first, created, err := f.committer.Commit(ctx, f.session, f.request)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := f.committer.Commit(ctx, f.session, f.request)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var orders int64
	f.db.Model(&models.Order{}).Count(&orders)
	assert.Equal(t, int64(1), orders)

	var usages int64
	f.db.Model(&models.CouponUsage{}).Count(&usages)
	assert.Equal(t, int64(1), usages)
}

func TestOrderCommitter_RejectsAmountMismatch(t *testing.T) {
	f := newCommitFixture(t)
	f.request.Amount = dec("1.00")

	_, _, err := f.committer.Commit(context.Background(), f.session, f.request)
	require.Error(t, err)

	var orders int64
	f.db.Model(&models.Order{}).Count(&orders)
	assert.Zero(t, orders)

	var cartItems int64
	f.db.Model(&models.CartItem{}).Count(&cartItems)
	assert.Equal(t, int64(2), cartItems, "failed commit must roll back")
}

func TestOrderCommitter_FindForBuyer(t *testing.T) {
	f := newCommitFixture(t)
	ctx := context.Background()

	order, _, err := f.committer.Commit(ctx, f.session, f.request)
	require.NoError(t, err)

	found, err := f.committer.FindForBuyer(ctx, f.session, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Len(t, found.OrderItems, 2)

	_, err = f.committer.FindForBuyer(ctx, Session{BuyerID: f.session.BuyerID + 100}, order.ID)
	assert.Error(t, err)
}
