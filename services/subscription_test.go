package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"plane-spot-system/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]*PaymentReceipt

func (f fakeVerifier) VerifyPayment(ctx context.Context, paymentID string) (*PaymentReceipt, error) {
	r, ok := f[paymentID]
	if !ok {
		return nil, notFound("payment", paymentID)
	}
	return r, nil
}

func newSubscriptionService(env *testEnv, v PaymentVerifier) *SubscriptionService {
	s := NewSubscriptionService(env.DB, v, env.Wallets)
	s.now = env.clock
	s.log = zerolog.Nop()
	return s
}

func TestConfirmSubscription(t *testing.T) {
	env := newTestEnv(t, time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	env.createUser(t, "u1", func(u *models.User) { u.SpotsRemaining = 1 })
	env.createUser(t, "u2")
	addr := env.linkWallet(t, "u1")
	env.linkWallet(t, "u2")

	subs := newSubscriptionService(env, fakeVerifier{
		"pay-ok":      {PaymentID: "pay-ok", WalletAddress: addr, Amount: decimal.NewFromInt(10), Asset: "HBAR", Status: "CONFIRMED"},
		"pay-pending": {PaymentID: "pay-pending", WalletAddress: addr, Amount: decimal.NewFromInt(10), Status: "pending"},
		"pay-cheap":   {PaymentID: "pay-cheap", WalletAddress: addr, Amount: decimal.RequireFromString("9.99"), Status: "confirmed"},
	})

	sub, err := subs.Confirm(ctx, "u1", "pay-ok")
	require.NoError(t, err)
	assert.True(t, sub.Amount.Equal(PremiumPrice))

	u := env.reload(t, "u1")
	assert.True(t, u.Premium)
	assert.Equal(t, models.PremiumDailySpotLimit, u.DailySpotLimit)
	assert.Equal(t, models.PremiumDailySpotLimit, u.SpotsRemaining)

	// a repeat confirm does not refill quota
	require.NoError(t, env.DB.Model(&models.User{}).Where("id = ?", "u1").Update("spots_remaining", 3).Error)
	_, err = subs.Confirm(ctx, "u1", "pay-ok")
	require.NoError(t, err)
	assert.Equal(t, 3, env.reload(t, "u1").SpotsRemaining)

	_, err = subs.Confirm(ctx, "u2", "pay-ok")
	requireKind(t, err, KindForbidden)
	assert.False(t, env.reload(t, "u2").Premium)

	_, err = subs.Confirm(ctx, "u1", "pay-pending")
	requireKind(t, err, KindValidation)

	_, err = subs.Confirm(ctx, "u1", "pay-cheap")
	requireKind(t, err, KindValidation)

	_, err = subs.Confirm(ctx, "u1", "pay-missing")
	requireKind(t, err, KindNotFound)

	_, err = subs.Confirm(ctx, "u1", "  ")
	requireKind(t, err, KindValidation)

	var n int64
	require.NoError(t, env.DB.Model(&models.Subscription{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestConfirmSubscriptionWithoutVerifier(t *testing.T) {
	env := newTestEnv(t, time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC))
	_, err := newSubscriptionService(env, nil).Confirm(context.Background(), "u1", "pay-1")
	requireKind(t, err, KindUpstreamUnavailable)
}

func TestPaymentAPIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "svc-token", r.Header.Get("X-Service-Token"))
		if r.URL.Path != "/api/v1/payments/pay-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payment_id":"pay-1","wallet_address":"0.0.5","amount":"12.5","asset":"HBAR","status":"confirmed"}`))
	}))
	defer srv.Close()

	c := NewPaymentAPIClient(srv.URL, "svc-token", time.Second)
	r, err := c.VerifyPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "0.0.5", r.WalletAddress)
	assert.True(t, r.Amount.Equal(decimal.RequireFromString("12.5")))

	_, err = c.VerifyPayment(context.Background(), "pay-2")
	requireKind(t, err, KindNotFound)
}
