package logkey

// Shared keys for structured logging so log queries stay consistent
// across packages.
const (
	TraceID = "Trace ID"
	ERROR   = "Error"

	OrderID   = "OrderID"
	ProductID = "ProductID"
	VariantID = "VariantID"
	VendorID  = "VendorID"
	UserID    = "UserID"
	Status    = "Status"
)
