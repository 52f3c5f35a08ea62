package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"buydeals/internal/config"
	"buydeals/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// VivaName is the route and registry name of the Viva Wallet adapter.
const VivaName = "viva"

// Viva transaction statuses. Anything else (A, C, M...) is still in
// progress and does not settle the order.
const (
	vivaStatusFinished  = "F"
	vivaStatusError     = "E"
	vivaStatusCancelled = "X"
)

var vivaCurrencies = []string{"EUR"}

// Viva creates Smart Checkout orders and confirms webhook events by looking
// the transaction up over the authenticated API.
type Viva struct {
	cfg    config.VivaConfig
	client *http.Client
	logger zerolog.Logger

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewViva creates the Viva adapter. A nil client gets one with the
// configured request timeout.
func NewViva(cfg config.VivaConfig, client *http.Client, logger zerolog.Logger) *Viva {
	if client == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Viva{
		cfg:    cfg,
		client: client,
		logger: logger.With().Str("provider", VivaName).Logger(),
	}
}

func (v *Viva) Name() string { return VivaName }

func (v *Viva) SupportsCurrency(code string) bool {
	return supports(vivaCurrencies, code)
}

type vivaTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type vivaCustomer struct {
	Email       string `json:"email,omitempty"`
	FullName    string `json:"fullName,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	RequestLang string `json:"requestLang,omitempty"`
}

type vivaOrderRequest struct {
	Amount       int64        `json:"amount"`
	CustomerTrns string       `json:"customerTrns"`
	Customer     vivaCustomer `json:"customer"`
	SourceCode   string       `json:"sourceCode"`
	MerchantTrns string       `json:"merchantTrns"`
	Tags         []string     `json:"tags,omitempty"`
}

type vivaOrderResponse struct {
	OrderCode int64 `json:"orderCode"`
}

type vivaTransaction struct {
	StatusID     string  `json:"statusId"`
	Amount       float64 `json:"amount"`
	OrderCode    int64   `json:"orderCode"`
	MerchantTrns string  `json:"merchantTrns"`
	CurrencyCode string  `json:"currencyCode"`
}

// Initiate creates a payment order and returns the hosted checkout URL.
func (v *Viva) Initiate(ctx context.Context, order *model.PaymentOrder) (*Checkout, error) {
	customer := order.CustomerInfo
	body := vivaOrderRequest{
		Amount:       order.Amount.Shift(2).Round(0).IntPart(),
		CustomerTrns: fmt.Sprintf("Buy Deals Club order %s", order.OrderID),
		Customer: vivaCustomer{
			Email:       customer.Email,
			FullName:    strings.TrimSpace(customer.FirstName + " " + customer.LastName),
			Phone:       customer.Phone,
			CountryCode: customer.Country,
			RequestLang: "en-GB",
		},
		SourceCode:   v.cfg.SourceCode,
		MerchantTrns: order.OrderID,
		Tags:         []string{"buydeals"},
	}

	var created vivaOrderResponse
	if err := v.doJSON(ctx, http.MethodPost, "/checkout/v2/orders", body, &created); err != nil {
		v.logger.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to create Viva order")
		return nil, fmt.Errorf("failed to create Viva order: %w", err)
	}
	if created.OrderCode == 0 {
		return nil, errors.New("viva returned an empty order code")
	}

	ref := strconv.FormatInt(created.OrderCode, 10)
	return &Checkout{
		URL:       v.cfg.CheckoutURL + "?ref=" + url.QueryEscape(ref),
		Params:    map[string]string{"ref": ref},
		Reference: ref,
	}, nil
}

// ParseNotification confirms a webhook by fetching the transaction it names.
// The webhook body itself is not trusted beyond the transaction id.
func (v *Viva) ParseNotification(ctx context.Context, params map[string]string) (*Notification, error) {
	transactionID := params["EventData.TransactionId"]
	if transactionID == "" {
		return nil, fmt.Errorf("%w: webhook without transaction id", model.ErrInvalidSignature)
	}

	var txn vivaTransaction
	path := "/checkout/v2/transactions/" + url.PathEscape(transactionID)
	if err := v.doJSON(ctx, http.MethodGet, path, nil, &txn); err != nil {
		v.logger.Warn().Err(err).Str("transaction_id", transactionID).Msg("transaction lookup failed")
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
	}

	orderID := txn.MerchantTrns
	if orderID == "" {
		return nil, fmt.Errorf("%w: transaction %s has no merchant reference", model.ErrInvalidSignature, transactionID)
	}

	var status model.PaymentStatus
	switch txn.StatusID {
	case vivaStatusFinished:
		status = model.PaymentStatusCompleted
	case vivaStatusError, vivaStatusCancelled:
		status = model.PaymentStatusFailed
	default:
		status = model.PaymentStatusPending
	}

	amount := decimal.NewFromFloat(txn.Amount).Round(2)
	return &Notification{
		OrderID:       orderID,
		TransactionID: transactionID,
		Status:        status,
		Amount:        &amount,
		Raw:           params,
	}, nil
}

// WebhookKey returns the key Viva expects when it verifies the webhook URL.
func (v *Viva) WebhookKey(ctx context.Context) (string, error) {
	if v.cfg.WebhookKey == "" {
		return "", errors.New("viva webhook key is not configured")
	}
	return v.cfg.WebhookKey, nil
}

func (v *Viva) doJSON(ctx context.Context, method, path string, in, out any) error {
	token, err := v.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.cfg.APIURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("viva request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusUnauthorized {
		v.invalidateToken()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("viva %s %s: status %d, body: %s", method, path, resp.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode viva response: %w", err)
	}
	return nil
}

// accessToken returns a cached client-credentials token, fetching a new one
// shortly before the old one expires.
func (v *Viva) accessToken(ctx context.Context) (string, error) {
	v.mu.RLock()
	if v.token != "" && time.Now().Before(v.tokenExpiry) {
		t := v.token
		v.mu.RUnlock()
		return t, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.token != "" && time.Now().Before(v.tokenExpiry) {
		return v.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.AccountsURL+"/connect/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("viva auth request build: %w", err)
	}
	req.SetBasicAuth(v.cfg.ClientID, v.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("viva auth request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("viva auth failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var tokenResp vivaTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("viva auth unmarshal: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", errors.New("viva auth: empty token")
	}

	v.token = tokenResp.AccessToken
	if tokenResp.ExpiresIn > 60 {
		v.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	} else {
		v.tokenExpiry = time.Now().Add(5 * time.Minute)
	}

	return v.token, nil
}

func (v *Viva) invalidateToken() {
	v.mu.Lock()
	v.token = ""
	v.mu.Unlock()
}
