package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"marketplace-service/internal/proximity"
	"marketplace-service/internal/users"
	"marketplace-service/pkg/ctxmanage"
	"marketplace-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *handler) CreateAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var newAddress users.NewAddress
	if !h.bindAndValidate(c, &newAddress) {
		return
	}

	address, err := h.users.CreateAddress(c.Request.Context(), claims.Subject, newAddress)
	if err != nil {
		slog.Error("error in creating the address", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Address Creation Failed"})
		return
	}

	h.refreshNearbyVendors(traceId, claims.Subject, address)

	c.JSON(http.StatusCreated, address)
}

func (h *handler) UpdateAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var newAddress users.NewAddress
	if !h.bindAndValidate(c, &newAddress) {
		return
	}

	address, err := h.users.UpdateAddress(c.Request.Context(), claims.Subject, c.Param("id"), newAddress)
	if err != nil {
		if errors.Is(err, users.ErrAddressNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "address not found"})
			return
		}
		slog.Error("error in updating the address", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Address Update Failed"})
		return
	}

	h.refreshNearbyVendors(traceId, claims.Subject, address)

	c.JSON(http.StatusOK, address)
}

// refreshNearbyVendors recomputes the buyer's vendor set from the address
// location and overwrites the stored set wholesale. Runs in the background;
// a failure leaves the previous set in place.
func (h *handler) refreshNearbyVendors(traceId, userID string, address users.Address) {
	if address.Lat == nil || address.Lng == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		origin := proximity.Location{
			Point:   proximity.Point{Lat: *address.Lat, Lng: *address.Lng},
			Address: address.Address,
		}
		vendorIDs, err := h.matcher.FindNearbyVendors(ctx, origin)
		if err != nil {
			slog.Error("matching vendors for address failed", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.UserID, userID), slog.String(logkey.ERROR, err.Error()))
			return
		}
		if err := h.users.ReplaceNearbyVendors(ctx, userID, vendorIDs); err != nil {
			slog.Error("replacing nearby vendors failed", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.UserID, userID), slog.String(logkey.ERROR, err.Error()))
		}
	}()
}

func (h *handler) ListAddresses(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	addresses, err := h.users.ListAddresses(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error in listing addresses", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

func (h *handler) DeleteAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	err := h.users.DeleteAddress(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		if errors.Is(err, users.ErrAddressNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "address not found"})
			return
		}
		slog.Error("error in deleting the address", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
}
