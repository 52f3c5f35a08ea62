package provider

import (
	"context"
	"testing"

	"buydeals/internal/config"
	"buydeals/internal/model"
	"buydeals/internal/signature"
	"buydeals/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type myPOSFixture struct {
	adapter        *MyPOS
	merchantVerify *signature.Verifier
	providerSign   *signature.Signer
}

func newMyPOSFixture(t *testing.T) *myPOSFixture {
	t.Helper()

	merchant := testutil.NewKeyPair(t)
	gateway := testutil.NewKeyPair(t)

	signer, err := signature.NewSignerFromPEM(merchant.PrivateKeyPEM)
	require.NoError(t, err)
	verifier, err := signature.NewVerifierFromPEM(gateway.CertPEM)
	require.NoError(t, err)
	merchantVerify, err := signature.NewVerifierFromPEM(merchant.CertPEM)
	require.NoError(t, err)
	providerSign, err := signature.NewSignerFromPEM(gateway.PrivateKeyPEM)
	require.NoError(t, err)

	cfg := config.MyPOSConfig{
		Enabled:             true,
		CheckoutURL:         "https://mypos.test/vmp/checkout",
		SID:                 "000000000000010",
		WalletNumber:        "61938166610",
		KeyIndex:            "1",
		Version:             "1.4",
		Language:            "EN",
		SuccessURL:          "https://shop.test/payment/success",
		CancelURL:           "https://shop.test/payment/cancel",
		NotifyURL:           "https://api.shop.test/functions/v1/mypos-webhook",
		SupportedCurrencies: []string{"EUR", "BGN"},
	}

	return &myPOSFixture{
		adapter:        NewMyPOS(cfg, signer, verifier, zerolog.Nop()),
		merchantVerify: merchantVerify,
		providerSign:   providerSign,
	}
}

func (f *myPOSFixture) signed(t *testing.T, params map[string]string) map[string]string {
	t.Helper()
	sig, err := f.providerSign.Sign(params)
	require.NoError(t, err)
	params[signature.FieldName] = sig
	return params
}

func testOrder(amount string, items ...model.OrderItem) *model.PaymentOrder {
	return &model.PaymentOrder{
		OrderID:  "ORD-1",
		UserID:   uuid.New(),
		Amount:   decimal.RequireFromString(amount),
		Currency: "eur",
		CustomerInfo: model.CustomerInfo{
			FirstName: "Maria",
			LastName:  "Ivanova",
			Email:     "maria@example.com",
			Country:   "BG",
		},
		OrderItems: items,
		Status:     model.PaymentStatusPending,
	}
}

func TestMyPOS_Initiate(t *testing.T) {
	f := newMyPOSFixture(t)
	order := testOrder("40.00", model.OrderItem{
		DealID:    uuid.New(),
		Title:     "Spa weekend",
		Quantity:  2,
		UnitPrice: decimal.RequireFromString("20.00"),
	})

	checkout, err := f.adapter.Initiate(context.Background(), order)

	require.NoError(t, err)
	assert.Equal(t, "https://mypos.test/vmp/checkout", checkout.URL)
	p := checkout.Params
	assert.Equal(t, "IPCPurchase", p["IPCmethod"])
	assert.Equal(t, "40.00", p["Amount"])
	assert.Equal(t, "EUR", p["Currency"])
	assert.Equal(t, "ORD-1", p["OrderID"])
	assert.Equal(t, "1", p["CartItems"])
	assert.Equal(t, "Spa weekend", p["Article_1"])
	assert.Equal(t, "2", p["Quantity_1"])
	assert.Equal(t, "20.00", p["Price_1"])
	assert.Equal(t, "40.00", p["Amount_1"])
	assert.Equal(t, "maria@example.com", p["CustomerEmail"])
	assert.True(t, f.merchantVerify.Verify(p, p[signature.FieldName]))
}

func TestMyPOS_Initiate_DiscountLine(t *testing.T) {
	f := newMyPOSFixture(t)
	order := testOrder("80.00", model.OrderItem{
		DealID:    uuid.New(),
		Title:     "Dinner for two",
		Quantity:  1,
		UnitPrice: decimal.RequireFromString("100.00"),
	})

	checkout, err := f.adapter.Initiate(context.Background(), order)

	require.NoError(t, err)
	p := checkout.Params
	assert.Equal(t, "2", p["CartItems"])
	assert.Equal(t, "Discount", p["Article_2"])
	assert.Equal(t, "-20.00", p["Amount_2"])
	assert.True(t, f.merchantVerify.Verify(p, p[signature.FieldName]))
}

func TestMyPOS_Initiate_NoKey(t *testing.T) {
	adapter := NewMyPOS(config.MyPOSConfig{}, nil, nil, zerolog.Nop())

	checkout, err := adapter.Initiate(context.Background(), testOrder("1.00"))

	require.Error(t, err)
	assert.Nil(t, checkout)
	assert.Contains(t, err.Error(), "failed to sign myPOS purchase")
}

func TestMyPOS_SupportsCurrency(t *testing.T) {
	f := newMyPOSFixture(t)

	assert.True(t, f.adapter.SupportsCurrency("eur"))
	assert.True(t, f.adapter.SupportsCurrency("BGN"))
	assert.False(t, f.adapter.SupportsCurrency("USD"))
}

func notifyParams(method string) map[string]string {
	return map[string]string{
		"IPCmethod":       method,
		"SID":             "000000000000010",
		"Amount":          "40.00",
		"Currency":        "EUR",
		"OrderID":         "ORD-1",
		"IPC_Trnref":      "TRN-77",
		"RequestSTAN":     "000123",
		"RequestDateTime": "2026-10-18 10:00:00",
	}
}

func TestMyPOS_ParseNotification(t *testing.T) {
	f := newMyPOSFixture(t)

	tests := []struct {
		name       string
		method     string
		wantStatus model.PaymentStatus
	}{
		{name: "purchase notify", method: "IPCPurchaseNotify", wantStatus: model.PaymentStatusCompleted},
		{name: "rollback", method: "IPCPurchaseRollback", wantStatus: model.PaymentStatusFailed},
		{name: "cancel", method: "IPCPurchaseCancel", wantStatus: model.PaymentStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := f.adapter.ParseNotification(context.Background(), f.signed(t, notifyParams(tt.method)))

			require.NoError(t, err)
			assert.Equal(t, "ORD-1", n.OrderID)
			assert.Equal(t, "TRN-77", n.TransactionID)
			assert.Equal(t, tt.wantStatus, n.Status)
			require.NotNil(t, n.Amount)
			assert.True(t, n.Amount.Equal(decimal.RequireFromString("40")))
		})
	}
}

func TestMyPOS_ParseNotification_Rejects(t *testing.T) {
	f := newMyPOSFixture(t)

	t.Run("missing signature", func(t *testing.T) {
		_, err := f.adapter.ParseNotification(context.Background(), notifyParams("IPCPurchaseNotify"))
		assert.ErrorIs(t, err, model.ErrInvalidSignature)
	})

	t.Run("tampered amount", func(t *testing.T) {
		params := f.signed(t, notifyParams("IPCPurchaseNotify"))
		params["Amount"] = "0.01"
		_, err := f.adapter.ParseNotification(context.Background(), params)
		assert.ErrorIs(t, err, model.ErrInvalidSignature)
	})

	t.Run("signed by merchant key instead of gateway", func(t *testing.T) {
		merchantSigned, err := f.adapter.signer.Sign(notifyParams("IPCPurchaseNotify"))
		require.NoError(t, err)
		params := notifyParams("IPCPurchaseNotify")
		params[signature.FieldName] = merchantSigned
		_, err = f.adapter.ParseNotification(context.Background(), params)
		assert.ErrorIs(t, err, model.ErrInvalidSignature)
	})

	t.Run("other merchant", func(t *testing.T) {
		params := notifyParams("IPCPurchaseNotify")
		params["SID"] = "999"
		_, err := f.adapter.ParseNotification(context.Background(), f.signed(t, params))
		assert.ErrorIs(t, err, model.ErrInvalidSignature)
	})

	t.Run("unexpected method", func(t *testing.T) {
		_, err := f.adapter.ParseNotification(context.Background(), f.signed(t, notifyParams("IPCPurchaseOK")))
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
	})
}

func TestRegistry(t *testing.T) {
	f := newMyPOSFixture(t)
	viva := NewViva(config.VivaConfig{}, nil, zerolog.Nop())
	registry := NewRegistry(f.adapter, viva)

	p, err := registry.Get("MyPOS")
	require.NoError(t, err)
	assert.Equal(t, MyPOSName, p.Name())

	_, err = registry.Get("stripe")
	assert.ErrorIs(t, err, model.ErrUnknownProvider)

	assert.Equal(t, []string{"mypos", "viva"}, registry.Names())
}
