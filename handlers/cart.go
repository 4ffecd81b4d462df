package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"marketplace-service/internal/cart"
	"marketplace-service/internal/products"
	"marketplace-service/pkg/ctxmanage"
	"marketplace-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *handler) AddCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var newItem cart.NewItem
	if !h.bindAndValidate(c, &newItem) {
		return
	}

	// The variant must exist, though stock is only enforced at checkout.
	_, err := h.products.GetVariant(c.Request.Context(), newItem.ProductID, newItem.VariantID)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) || errors.Is(err, products.ErrVariantNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "product or variant not found"})
			return
		}
		slog.Error("error in checking the variant", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	item, err := h.cart.AddItem(c.Request.Context(), claims.Subject, newItem)
	if err != nil {
		slog.Error("error in adding cart item", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Add to Cart Failed"})
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *handler) ListCartItems(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	items, err := h.cart.Items(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error in listing cart items", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *handler) DeleteCartItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	err := h.cart.DeleteItem(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
			return
		}
		slog.Error("error in deleting cart item", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "item removed"})
}
