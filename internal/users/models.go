package users

import "time"

const (
	TypeBuyer  = "Buyer"
	TypeVendor = "Vendor"
	TypeAdmin  = "Admin"
)

type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Mobile          string    `json:"mobile"`
	UserType        string    `json:"user_type"`
	ShopName        string    `json:"shop_name,omitempty"`
	ShopAddress     string    `json:"shop_address,omitempty"`
	Gst             string    `json:"gst,omitempty"`
	ShopLat         *float64  `json:"shop_lat,omitempty"`
	ShopLng         *float64  `json:"shop_lng,omitempty"`
	ServiceRadiusKm *float64  `json:"service_radius_km,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	passwordHash string
}

type NewUser struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Mobile   string `json:"mobile" validate:"required"`
	UserType string `json:"user_type" validate:"required,oneof=Buyer Vendor"`

	// Vendor-only. Buyers never carry a shop location or radius.
	ShopName        string   `json:"shop_name"`
	ShopAddress     string   `json:"shop_address"`
	Gst             string   `json:"gst"`
	ShopLat         *float64 `json:"shop_lat"`
	ShopLng         *float64 `json:"shop_lng"`
	ServiceRadiusKm *float64 `json:"service_radius_km"`
}

type Address struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	Address   string    `json:"address"`
	Landmark  string    `json:"landmark,omitempty"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewAddress struct {
	Name     string   `json:"name" validate:"required"`
	Mobile   string   `json:"mobile" validate:"required"`
	Address  string   `json:"address" validate:"required"`
	Landmark string   `json:"landmark"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}
