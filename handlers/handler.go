package handlers

import (
	"net/http"
	"os"

	"marketplace-service/internal/auth"
	"marketplace-service/internal/cart"
	"marketplace-service/internal/notify"
	"marketplace-service/internal/orders"
	"marketplace-service/internal/otp"
	"marketplace-service/internal/products"
	"marketplace-service/internal/proximity"
	"marketplace-service/internal/stores/kafka"
	"marketplace-service/internal/users"
	"marketplace-service/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type handler struct {
	users    *users.Conf
	products *products.Conf
	cart     cart.Conf
	orders   *orders.Conf
	notify   *notify.Conf
	matcher  *proximity.Matcher
	otp      *otp.Store
	kafka    *kafka.Conf
	keys     *auth.Keys
	validate *validator.Validate
}

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Users    *users.Conf
	Products *products.Conf
	Cart     cart.Conf
	Orders   *orders.Conf
	Notify   *notify.Conf
	Matcher  *proximity.Matcher
	OTP      *otp.Store
	Kafka    *kafka.Conf
	Keys     *auth.Keys
}

func API(d Deps) (*gin.Engine, error) {

	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	m, err := middleware.NewMid(d.Keys)
	if err != nil {
		return nil, err
	}
	h := handler{
		users:    d.Users,
		products: d.Products,
		cart:     d.Cart,
		orders:   d.Orders,
		notify:   d.Notify,
		matcher:  d.Matcher,
		otp:      d.OTP,
		kafka:    d.Kafka,
		keys:     d.Keys,
		validate: validator.New(),
	}
	r.Use(middleware.Logger(), gin.Recovery())
	r.GET("/ping", healthCheck)

	prefix := os.Getenv("SERVICE_ENDPOINT_PREFIX")
	if prefix == "" {
		prefix = "/v1"
	}

	usersGroup := r.Group(prefix + "/users")
	{
		usersGroup.POST("/signup", h.Signup)
		usersGroup.POST("/login", h.Login)
		usersGroup.POST("/forgot-password/:email", h.ForgotPassword)
		usersGroup.POST("/verify-otp", h.VerifyOTP)
		usersGroup.POST("/reset-password", h.ResetPasswordWithOTP)

		usersGroup.Use(m.Authentication())
		usersGroup.GET("/me", h.Me)
		usersGroup.POST("/address", h.CreateAddress)
		usersGroup.PUT("/address/:id", h.UpdateAddress)
		usersGroup.GET("/address", h.ListAddresses)
		usersGroup.DELETE("/address/:id", h.DeleteAddress)
		usersGroup.GET("/nearby-vendors", h.NearbyVendors)
		usersGroup.GET("/notifications", h.ListNotifications)
		usersGroup.PATCH("/notifications/:id/seen", h.MarkNotificationSeen)
	}

	productsGroup := r.Group(prefix + "/products")
	{
		productsGroup.GET("/view/:id", h.GetProduct)
		productsGroup.GET("/stock/:productID/:variantID", h.VariantStock)

		productsGroup.Use(m.Authentication())
		productsGroup.GET("/list", h.ListNearbyProducts)
		productsGroup.POST("/create", m.Authorize(h.CreateProduct, auth.RoleVendor))
		productsGroup.PUT("/update/:id", m.Authorize(h.UpdateProduct, auth.RoleVendor))
		productsGroup.DELETE("/delete/:id", m.Authorize(h.DeleteProduct, auth.RoleVendor))
	}

	cartGroup := r.Group(prefix + "/cart")
	{
		cartGroup.Use(m.Authentication())
		cartGroup.POST("/add-item", h.AddCartItem)
		cartGroup.GET("/items", h.ListCartItems)
		cartGroup.DELETE("/item/:id", h.DeleteCartItem)
	}

	ordersGroup := r.Group(prefix + "/orders")
	{
		ordersGroup.Use(m.Authentication())
		ordersGroup.GET("", h.ListOrders)
		ordersGroup.POST("/checkout", h.Checkout)
		ordersGroup.GET("/vendor/:page", m.Authorize(h.VendorOrders, auth.RoleVendor))
		ordersGroup.GET("/:id", h.GetOrder)
		ordersGroup.PATCH("/:id/status", m.Authorize(h.UpdateOrderStatus, auth.RoleVendor, auth.RoleAdmin))
	}

	return r, nil
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
