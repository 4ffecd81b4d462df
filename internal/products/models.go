package products

import "time"

// Product is the one canonical catalog shape. Price and stock always live
// on variants; there is no flat-price product form.
type Product struct {
	ID           string    `json:"id"`
	VendorID     string    `json:"vendor_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Brand        string    `json:"brand"`
	Category     string    `json:"category"`
	SubCategory  string    `json:"sub_category,omitempty"`
	Images       []string  `json:"images"`
	Display      bool      `json:"display"`
	TaxRate      float64   `json:"tax_rate"`
	TaxInclusive bool      `json:"tax_inclusive"`
	Variants     []Variant `json:"variants"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Variant is one purchasable SKU of a product.
type Variant struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"product_id"`
	Unit            string    `json:"unit"`
	UnitPrice       float64   `json:"unit_price"`
	SellingPrice    float64   `json:"selling_price"`
	AvailableQty    int       `json:"available_qty"`
	MinimumOrderQty int       `json:"minimum_order_qty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type NewProduct struct {
	Name         string       `json:"name" validate:"required"`
	Description  string       `json:"description"`
	Brand        string       `json:"brand" validate:"required"`
	Category     string       `json:"category" validate:"required"`
	SubCategory  string       `json:"sub_category"`
	Images       []string     `json:"images"`
	TaxRate      float64      `json:"tax_rate" validate:"gte=0,lte=100"`
	TaxInclusive bool         `json:"tax_inclusive"`
	Variants     []NewVariant `json:"variants" validate:"required,min=1,dive"`
}

type NewVariant struct {
	Unit            string  `json:"unit"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	SellingPrice    float64 `json:"selling_price" validate:"required,gt=0"`
	AvailableQty    int     `json:"available_qty" validate:"gte=0"`
	MinimumOrderQty int     `json:"minimum_order_qty" validate:"gte=1"`
}
