// Package provider adapts the hosted payment pages the storefront can hand
// a payer to. Each adapter builds the checkout request for an order and
// turns the provider's asynchronous notification into a verified outcome.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"buydeals/internal/model"

	"github.com/shopspring/decimal"
)

// Checkout is where the client must send the payer.
type Checkout struct {
	URL       string
	Params    map[string]string
	Reference string
}

// Notification is a verified provider callback.
type Notification struct {
	OrderID       string
	TransactionID string
	Status        model.PaymentStatus
	Amount        *decimal.Decimal
	Currency      string
	Raw           map[string]string
}

// Provider is a payment provider adapter.
type Provider interface {
	Name() string
	SupportsCurrency(code string) bool
	Initiate(ctx context.Context, order *model.PaymentOrder) (*Checkout, error)
	// ParseNotification verifies params and maps them to an outcome. A
	// notification that cannot be verified returns model.ErrInvalidSignature.
	ParseNotification(ctx context.Context, params map[string]string) (*Notification, error)
}

// WebhookKeyer is implemented by providers that verify webhook URLs with a
// GET handshake before delivering events.
type WebhookKeyer interface {
	WebhookKey(ctx context.Context) (string, error)
}

// Registry holds the enabled providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry of the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered provider names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func supports(list []string, code string) bool {
	code = strings.ToUpper(code)
	for _, c := range list {
		if c == code {
			return true
		}
	}
	return false
}
