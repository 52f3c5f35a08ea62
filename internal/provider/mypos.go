package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"buydeals/internal/config"
	"buydeals/internal/model"
	"buydeals/internal/signature"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MyPOSName is the route and registry name of the myPOS adapter.
const MyPOSName = "mypos"

// myPOS IPC methods.
const (
	ipcPurchase         = "IPCPurchase"
	ipcPurchaseNotify   = "IPCPurchaseNotify"
	ipcPurchaseRollback = "IPCPurchaseRollback"
	ipcPurchaseCancel   = "IPCPurchaseCancel"
)

// MyPOS builds signed IPC purchase forms and verifies IPC notifications.
type MyPOS struct {
	cfg      config.MyPOSConfig
	signer   *signature.Signer
	verifier *signature.Verifier
	logger   zerolog.Logger
}

// NewMyPOS creates the myPOS adapter.
func NewMyPOS(cfg config.MyPOSConfig, signer *signature.Signer, verifier *signature.Verifier, logger zerolog.Logger) *MyPOS {
	return &MyPOS{
		cfg:      cfg,
		signer:   signer,
		verifier: verifier,
		logger:   logger.With().Str("provider", MyPOSName).Logger(),
	}
}

func (m *MyPOS) Name() string { return MyPOSName }

func (m *MyPOS) SupportsCurrency(code string) bool {
	return supports(m.cfg.SupportedCurrencies, code)
}

// Initiate returns the signed form the client posts to the IPC endpoint.
// The order's line items are sent as the cart; when discounts make the
// lines disagree with the order amount a single balancing line is added.
func (m *MyPOS) Initiate(ctx context.Context, order *model.PaymentOrder) (*Checkout, error) {
	currency := strings.ToUpper(order.Currency)
	params := map[string]string{
		"IPCmethod":          ipcPurchase,
		"IPCVersion":         m.cfg.Version,
		"IPCLanguage":        m.cfg.Language,
		"SID":                m.cfg.SID,
		"WalletNumber":       m.cfg.WalletNumber,
		"KeyIndex":           m.cfg.KeyIndex,
		"OrderID":            order.OrderID,
		"Amount":             order.Amount.StringFixed(2),
		"Currency":           currency,
		"URL_OK":             m.cfg.SuccessURL,
		"URL_Cancel":         m.cfg.CancelURL,
		"URL_Notify":         m.cfg.NotifyURL,
		"CustomerEmail":      order.CustomerInfo.Email,
		"CustomerPhone":      order.CustomerInfo.Phone,
		"CustomerFirstNames": order.CustomerInfo.FirstName,
		"CustomerFamilyName": order.CustomerInfo.LastName,
		"CustomerCountry":    order.CustomerInfo.Country,
		"CustomerCity":       order.CustomerInfo.City,
		"CustomerZIPCode":    order.CustomerInfo.ZipCode,
		"CustomerAddress":    order.CustomerInfo.Address,
		"Note":               "",
	}

	lines := 0
	sum := decimal.Zero
	for _, item := range order.OrderItems {
		lines++
		total := item.LineTotal()
		sum = sum.Add(total)
		setCartLine(params, lines, item.Title, item.Quantity, item.UnitPrice, total, currency)
	}
	if diff := order.Amount.Sub(sum); !diff.IsZero() {
		lines++
		setCartLine(params, lines, "Discount", 1, diff, diff, currency)
	}
	params["CartItems"] = strconv.Itoa(lines)

	sig, err := m.signer.Sign(params)
	if err != nil {
		m.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to sign purchase request")
		return nil, fmt.Errorf("failed to sign myPOS purchase: %w", err)
	}
	params[signature.FieldName] = sig

	return &Checkout{URL: m.cfg.CheckoutURL, Params: params, Reference: order.OrderID}, nil
}

func setCartLine(params map[string]string, i int, title string, qty int, price, amount decimal.Decimal, currency string) {
	n := strconv.Itoa(i)
	params["Article_"+n] = title
	params["Quantity_"+n] = strconv.Itoa(qty)
	params["Price_"+n] = price.StringFixed(2)
	params["Amount_"+n] = amount.StringFixed(2)
	params["Currency_"+n] = currency
}

// ParseNotification verifies an IPC notification signed with the myPOS
// certificate.
func (m *MyPOS) ParseNotification(ctx context.Context, params map[string]string) (*Notification, error) {
	sig := params[signature.FieldName]
	if sig == "" {
		return nil, fmt.Errorf("%w: missing signature", model.ErrInvalidSignature)
	}
	if !m.verifier.Verify(params, sig) {
		return nil, model.ErrInvalidSignature
	}
	if sid := params["SID"]; sid != "" && sid != m.cfg.SID {
		return nil, fmt.Errorf("%w: notification for merchant %s", model.ErrInvalidSignature, sid)
	}

	orderID := params["OrderID"]
	if orderID == "" {
		return nil, fmt.Errorf("%w: notification without OrderID", model.ErrInvalidRequest)
	}

	method := params["IPCmethod"]
	var status model.PaymentStatus
	switch method {
	case ipcPurchaseNotify:
		status = model.PaymentStatusCompleted
	case ipcPurchaseRollback, ipcPurchaseCancel:
		status = model.PaymentStatusFailed
	default:
		return nil, fmt.Errorf("%w: unexpected IPC method %q", model.ErrInvalidRequest, method)
	}

	n := &Notification{
		OrderID:       orderID,
		TransactionID: params["IPC_Trnref"],
		Status:        status,
		Currency:      strings.ToUpper(params["Currency"]),
		Raw:           params,
	}
	if n.TransactionID == "" {
		n.TransactionID = method + ":" + orderID
	}
	if raw := params["Amount"]; raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed amount %q", model.ErrInvalidRequest, raw)
		}
		n.Amount = &amount
	}
	return n, nil
}
