package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"marketplace-service/internal/auth"
	"marketplace-service/internal/notify"
	"marketplace-service/internal/otp"
	"marketplace-service/internal/proximity"
	"marketplace-service/internal/users"
	"marketplace-service/pkg/ctxmanage"
	"marketplace-service/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func rolesFor(userType string) []string {
	switch userType {
	case users.TypeVendor:
		return []string{auth.RoleVendor}
	case users.TypeAdmin:
		return []string{auth.RoleAdmin}
	default:
		return []string{auth.RoleUser}
	}
}

func (h *handler) Signup(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var newUser users.NewUser
	if !h.bindAndValidate(c, &newUser) {
		return
	}

	if newUser.UserType == users.TypeVendor {
		if newUser.ShopLat == nil || newUser.ShopLng == nil || newUser.ServiceRadiusKm == nil {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				gin.H{"error": "vendor signup requires shop_lat, shop_lng and service_radius_km"})
			return
		}
		if *newUser.ServiceRadiusKm <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				gin.H{"error": "service_radius_km must be greater than zero"})
			return
		}
	}

	user, err := h.users.InsertUser(c.Request.Context(), newUser)
	if err != nil {
		if errors.Is(err, users.ErrEmailExists) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		slog.Error("error in inserting the user", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Signup Failed"})
		return
	}

	// A new vendor becomes visible to every buyer already inside its
	// service radius. Additive only: existing vendor links are untouched.
	if user.UserType == users.TypeVendor && user.ShopLat != nil {
		go h.linkVendorToNearbyBuyers(traceId, user)
	}

	c.JSON(http.StatusCreated, user)
}

func (h *handler) linkVendorToNearbyBuyers(traceId string, vendor users.User) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	site := proximity.VendorSite{
		VendorID: vendor.ID,
		Address:  vendor.ShopAddress,
		Point:    proximity.Point{Lat: *vendor.ShopLat, Lng: *vendor.ShopLng},
		RadiusKm: *vendor.ServiceRadiusKm,
	}
	buyerIDs, err := h.matcher.FindNearbyBuyers(ctx, site)
	if err != nil {
		slog.Error("matching buyers for new vendor failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.VendorID, vendor.ID), slog.String(logkey.ERROR, err.Error()))
		return
	}
	for _, buyerID := range buyerIDs {
		if err := h.users.AddNearbyVendor(ctx, buyerID, vendor.ID); err != nil {
			slog.Error("linking buyer to vendor failed", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.UserID, buyerID), slog.String(logkey.VendorID, vendor.ID),
				slog.String(logkey.ERROR, err.Error()))
		}
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *handler) Login(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req loginRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) || errors.Is(err, users.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		slog.Error("error in authenticating the user", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Login Failed"})
		return
	}

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "marketplace-service",
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Roles: rolesFor(user.UserType),
	}
	token, err := h.keys.GenerateToken(claims)
	if err != nil {
		slog.Error("error in generating the token", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Login Failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *handler) Me(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		slog.Error("error in fetching the user", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *handler) ForgotPassword(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	email := c.Param("email")
	if err := h.validate.Var(email, "required,email"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}

	code, err := h.otp.Generate(c.Request.Context(), email)
	if err != nil {
		slog.Error("error in generating the otp", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	// TODO: deliver the code over email once the mailer integration lands.
	slog.Info("otp generated", slog.String(logkey.TraceID, traceId),
		slog.String("Email", email), slog.String("OTP", code))

	c.JSON(http.StatusOK, gin.H{"message": "otp sent if the email is registered"})
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6"`
}

func (h *handler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	err := h.otp.Check(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.otpError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "otp verified"})
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (h *handler) ResetPasswordWithOTP(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req resetPasswordRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	// Consumes the code on success; a second reset needs a fresh one.
	err := h.otp.Verify(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.otpError(c, err)
		return
	}

	err = h.users.ResetPassword(c.Request.Context(), req.Email, req.NewPassword)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		slog.Error("error in resetting the password", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (h *handler) otpError(c *gin.Context, err error) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	switch {
	case errors.Is(err, otp.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "otp expired or never generated"})
	case errors.Is(err, otp.ErrMismatch):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "otp does not match"})
	default:
		slog.Error("error in verifying the otp", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
	}
}

// NearbyVendors returns the vendor profiles currently cached for the
// buyer, as computed on the last address change.
func (h *handler) NearbyVendors(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	vendorIDs, err := h.users.NearbyVendorIDs(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error in listing nearby vendors", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	vendors := make([]users.User, 0, len(vendorIDs))
	for _, id := range vendorIDs {
		vendor, err := h.users.GetUserByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				continue
			}
			slog.Error("error in fetching vendor", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.VendorID, id), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
			return
		}
		vendors = append(vendors, vendor)
	}

	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}

func (h *handler) ListNotifications(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	list, err := h.notify.ListByUser(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error in listing notifications", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *handler) MarkNotificationSeen(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	err := h.notify.MarkSeen(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		slog.Error("error in marking notification seen", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "marked as seen"})
}
