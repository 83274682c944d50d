package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIntent(t *testing.T) {
	db := newTestDB(t)
	buyer := seedBuyer(t, db, "asha")
	client := &fakeOrderClient{}
	gateway := NewPaymentGatewayAdapter(db, client, "rzp_test_key")

	intent, err := gateway.CreateIntent(context.Background(), sessionFor(buyer), "attempt-1", dec("970.00"), "INR", true)
	require.NoError(t, err)

	assert.Equal(t, "order_test_1", intent.RazorpayOrderID)
	assert.Equal(t, int64(97000), intent.AmountPaise)
	assert.Equal(t, models.PaymentIntentCreated, intent.Status)
	require.Equal(t, 1, client.count())
	assert.Equal(t, int64(97000), client.calls[0]["amount"])
	assert.Equal(t, "attempt-1", client.calls[0]["receipt"])
	assert.Equal(t, "INR", client.calls[0]["currency"])

	stored, err := gateway.FindIntent(context.Background(), "order_test_1")
	require.NoError(t, err)
	assert.Equal(t, "attempt-1", stored.AttemptID)
	assert.Equal(t, buyer.ID, stored.UserID)

	request := gateway.PresentForAuthorization(intent)
	assert.Equal(t, "rzp_test_key", request.Key)
	assert.Equal(t, "order_test_1", request.OrderID)
	assert.Equal(t, int64(97000), request.Amount)
	assert.Equal(t, "attempt-1", request.AttemptID)
}

func TestCreateIntent_NeverReusesIntent(t *testing.T) {
	db := newTestDB(t)
	buyer := seedBuyer(t, db, "asha")
	client := &fakeOrderClient{}
	gateway := NewPaymentGatewayAdapter(db, client, "rzp_test_key")
	s := sessionFor(buyer)

	first, err := gateway.CreateIntent(context.Background(), s, "attempt-1", dec("100"), "INR", true)
	require.NoError(t, err)
	second, err := gateway.CreateIntent(context.Background(), s, "attempt-1", dec("100"), "INR", true)
	require.NoError(t, err)

	assert.NotEqual(t, first.RazorpayOrderID, second.RazorpayOrderID)
	assert.Equal(t, 2, client.count())
}

func TestCreateIntent_GatewayUnavailable(t *testing.T) {
	db := newTestDB(t)
	buyer := seedBuyer(t, db, "asha")
	s := sessionFor(buyer)
	ctx := context.Background()

	client := &fakeOrderClient{}
	gateway := NewPaymentGatewayAdapter(db, client, "rzp_test_key")
	_, err := gateway.CreateIntent(ctx, s, "attempt-1", dec("100"), "INR", false)
	assert.True(t, utils.IsKind(err, utils.KindGatewayUnavailable), "script not loaded")
	assert.Zero(t, client.count(), "no intent may be created when the script failed to load")

	unconfigured := NewRazorpayGateway(db, "", "")
	_, err = unconfigured.CreateIntent(ctx, s, "attempt-1", dec("100"), "INR", true)
	assert.True(t, utils.IsKind(err, utils.KindGatewayUnavailable), "missing credentials")

	failing := NewPaymentGatewayAdapter(db, &fakeOrderClient{err: errors.New("connection refused")}, "rzp_test_key")
	_, err = failing.CreateIntent(ctx, s, "attempt-1", dec("100"), "INR", true)
	assert.True(t, utils.IsKind(err, utils.KindGatewayUnavailable), "gateway error")

	var count int64
	db.Model(&models.PaymentIntent{}).Count(&count)
	assert.Zero(t, count)
}

func TestIntentStatusTransitions(t *testing.T) {
	db := newTestDB(t)
	buyer := seedBuyer(t, db, "asha")
	gateway := NewPaymentGatewayAdapter(db, &fakeOrderClient{}, "rzp_test_key")
	ctx := context.Background()

	intent, err := gateway.CreateIntent(ctx, sessionFor(buyer), "attempt-1", dec("100"), "INR", true)
	require.NoError(t, err)

	require.NoError(t, gateway.MarkAuthorized(ctx, intent.RazorpayOrderID, "pay_1"))
	stored, err := gateway.FindIntent(ctx, intent.RazorpayOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIntentAuthorized, stored.Status)
	assert.Equal(t, "pay_1", stored.PaymentID)

	require.NoError(t, gateway.MarkCaptured(ctx, intent.RazorpayOrderID, "pay_1"))
	require.NoError(t, gateway.MarkFailed(ctx, intent.RazorpayOrderID, "late failure"))
	stored, err = gateway.FindIntent(ctx, intent.RazorpayOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIntentCaptured, stored.Status, "captured intents never move back")
	assert.Empty(t, stored.FailureReason)
}

func TestRecordPaymentFailureKeepsIntentOpen(t *testing.T) {
	db := newTestDB(t)
	buyer := seedBuyer(t, db, "asha")
	gateway := NewPaymentGatewayAdapter(db, &fakeOrderClient{}, "rzp_test_key")
	ctx := context.Background()

	intent, err := gateway.CreateIntent(ctx, sessionFor(buyer), "attempt-1", dec("100"), "INR", true)
	require.NoError(t, err)

	require.NoError(t, gateway.RecordPaymentFailure(ctx, intent.RazorpayOrderID, "pay_declined", "card declined"))
	stored, err := gateway.FindIntent(ctx, intent.RazorpayOrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIntentCreated, stored.Status)
	assert.Equal(t, "payment pay_declined: card declined", stored.FailureReason)
}
