package orders

import (
	"errors"
	"fmt"
)

// Kind classifies an order failure for the caller. The values double as the
// stable `error.kind` strings in responses.
type Kind string

const (
	KindInvalidRequest    Kind = "InvalidRequest"
	KindNotFound          Kind = "NotFound"
	KindBelowMinimumOrder Kind = "BelowMinimumOrder"
	KindInsufficientStock Kind = "InsufficientStock"
	KindPriceMismatch     Kind = "PriceMismatch"
	KindBillMismatch      Kind = "BillMismatch"
	KindExternalService   Kind = "ExternalServiceError"
	KindPersistence       Kind = "PersistenceError"
)

// Error is a structured order failure. Index and ProductID are set when the
// failure is tied to a specific cart item, so the caller can point at the
// offending line. Index is -1 otherwise.
type Error struct {
	Kind      Kind
	Index     int
	ProductID string
	Message   string
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s (item %d, product %s): %s", e.Kind, e.Index, e.ProductID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Index: -1, Message: fmt.Sprintf(format, args...)}
}

func newItemError(kind Kind, index int, productID, format string, args ...any) *Error {
	return &Error{Kind: kind, Index: index, ProductID: productID, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind, defaulting to PersistenceError for
// anything that is not a structured order failure.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindPersistence
}
