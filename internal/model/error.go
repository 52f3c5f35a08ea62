package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUnknownProvider     = "UNKNOWN_PROVIDER"
	ErrCodeUnsupportedCurrency = "UNSUPPORTED_CURRENCY"
	ErrCodeEmptyCart           = "EMPTY_CART"
	ErrCodeOrderExists         = "ORDER_EXISTS"
	ErrCodeWheelUnavailable    = "WHEEL_UNAVAILABLE"
	ErrCodeInsufficientPoints  = "INSUFFICIENT_POINTS"
	ErrCodeInsufficientStock   = "INSUFFICIENT_STOCK"
	ErrCodeDealUnavailable     = "DEAL_UNAVAILABLE"
	ErrCodeAmountMismatch      = "AMOUNT_MISMATCH"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// DomainError is a business rule violation that maps onto an API error code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrUnauthorised         = NewDomainError(ErrCodeUnauthorised, "Missing or invalid bearer token")
	ErrInvalidRequest       = NewDomainError(ErrCodeInvalidRequest, "Invalid payment request")
	ErrUnknownProvider      = NewDomainError(ErrCodeUnknownProvider, "Unknown payment provider")
	ErrUnsupportedCurrency  = NewDomainError(ErrCodeUnsupportedCurrency, "Currency is not supported")
	ErrEmptyCart            = NewDomainError(ErrCodeEmptyCart, "Cart is empty")
	ErrOrderExists          = NewDomainError(ErrCodeOrderExists, "A payment order with this id already exists")
	ErrPaymentOrderNotFound = NewDomainError(ErrCodeNotFound, "Payment order not found")
	ErrDealNotFound         = NewDomainError(ErrCodeNotFound, "Deal not found")
	ErrWheelUnavailable     = NewDomainError(ErrCodeWheelUnavailable, "Wheel discount is expired, redeemed or reserved")
	ErrInsufficientPoints   = NewDomainError(ErrCodeInsufficientPoints, "Not enough loyalty points")
	ErrInsufficientStock    = NewDomainError(ErrCodeInsufficientStock, "Not enough stock left for deal")
	ErrDealUnavailable      = NewDomainError(ErrCodeDealUnavailable, "Deal is no longer on sale")
	ErrAmountMismatch       = NewDomainError(ErrCodeAmountMismatch, "Amount does not match the order total")
	ErrInvalidSignature     = NewDomainError(ErrCodeInvalidSignature, "Provider notification failed verification")
)

// AsDomainError unwraps err into a DomainError when it carries one.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
