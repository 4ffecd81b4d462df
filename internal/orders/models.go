package orders

import "time"

const (
	PaymentModeCash   = "cash"
	PaymentModeOnline = "online"
)

// Order is immutable once created, except for status and its append-only
// history. Line items are frozen snapshots: later catalog edits never
// change what was bought.
type Order struct {
	ID            string         `json:"order_id"`
	UserID        string         `json:"user_id"`
	AddressID     string         `json:"address_id"`
	PaymentMode   string         `json:"payment_mode"`
	PaymentID     string         `json:"payment_id,omitempty"`
	BillAmount    float64        `json:"bill_amount"`
	TaxAmount     float64        `json:"tax_amount"`
	Status        string         `json:"status"`
	Items         []LineItem     `json:"items,omitempty"`
	StatusHistory []StatusChange `json:"status_history,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// LineItem is the frozen snapshot of one ordered variant.
type LineItem struct {
	ProductID    string   `json:"product_id"`
	VariantID    string   `json:"variant_id"`
	VendorID     string   `json:"vendor_id"`
	Quantity     int      `json:"quantity"`
	UnitPrice    float64  `json:"unit_price"`
	TotalPrice   float64  `json:"total_price"`
	TaxRate      float64  `json:"tax_rate"`
	TaxInclusive bool     `json:"tax_inclusive"`
	Images       []string `json:"images"`
}

// StatusChange is one append-only history entry.
type StatusChange struct {
	Status string    `json:"status"`
	Date   time.Time `json:"date"`
	Note   string    `json:"note,omitempty"`
}

// NewOrder is a proposed order as submitted by the client. Claimed amounts
// are cross-checked server-side against the live catalog.
type NewOrder struct {
	Items             []NewOrderItem `json:"items" validate:"required,min=1,dive"`
	AddressID         string         `json:"address_id" validate:"required"`
	PaymentMode       string         `json:"payment_mode" validate:"required,oneof=cash online"`
	PaymentID         string         `json:"payment_id"`
	ClaimedBillAmount float64        `json:"bill_amount" validate:"required,gt=0"`
}

type NewOrderItem struct {
	ProductID        string  `json:"product_id" validate:"required"`
	VariantID        string  `json:"variant_id" validate:"required"`
	Quantity         int     `json:"quantity" validate:"required,gte=1"`
	ClaimedLineTotal float64 `json:"line_total" validate:"required,gt=0"`
}

// VendorOrder is one order restricted to a single vendor's lines, with the
// amount owed to that vendor.
type VendorOrder struct {
	OrderID        string     `json:"order_id"`
	UserID         string     `json:"user_id"`
	AddressID      string     `json:"address_id"`
	PaymentMode    string     `json:"payment_mode"`
	PaymentID      string     `json:"payment_id,omitempty"`
	Status         string     `json:"status"`
	VenOrderAmount float64    `json:"ven_order_amount"`
	Items          []LineItem `json:"items"`
	CreatedAt      time.Time  `json:"created_at"`
}
