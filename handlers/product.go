package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"marketplace-service/internal/products"
	"marketplace-service/pkg/ctxmanage"
	"marketplace-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *handler) CreateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var newProduct products.NewProduct
	if !h.bindAndValidate(c, &newProduct) {
		return
	}

	product, err := h.products.InsertProduct(c.Request.Context(), claims.Subject, newProduct)
	if err != nil {
		slog.Error("error in inserting the product", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Product Creation Failed"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *handler) GetProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	productID := c.Param("id")
	product, err := h.products.GetProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		slog.Error("error in retrieving product", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, product)
}

// VariantStock reports the live quantity for one variant, for clients that
// want to pre-check before checkout. Checkout re-validates regardless.
func (h *handler) VariantStock(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	productID := c.Param("productID")
	variantID := c.Param("variantID")
	variant, err := h.products.GetVariant(c.Request.Context(), productID, variantID)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) || errors.Is(err, products.ErrVariantNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "product or variant not found"})
			return
		}
		slog.Error("error in fetching variant stock", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id":    productID,
		"variant_id":    variant.ID,
		"available_qty": variant.AvailableQty,
		"selling_price": variant.SellingPrice,
	})
}

// ListNearbyProducts returns the catalog restricted to vendors whose
// service area covers the buyer, as computed on the last address change.
func (h *handler) ListNearbyProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	const pageSize = 50

	vendorIDs, err := h.users.NearbyVendorIDs(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error in fetching nearby vendors", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}
	if len(vendorIDs) == 0 {
		c.JSON(http.StatusOK, gin.H{"products": []products.Product{}, "total": 0, "page": page})
		return
	}

	list, total, err := h.products.ListByVendors(c.Request.Context(), vendorIDs, pageSize, (page-1)*pageSize)
	if err != nil {
		slog.Error("error in listing products", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": list, "total": total, "page": page})
}

func (h *handler) UpdateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var newProduct products.NewProduct
	if !h.bindAndValidate(c, &newProduct) {
		return
	}

	productID := c.Param("id")
	product, err := h.products.UpdateProduct(c.Request.Context(), claims.Subject, productID, newProduct)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		slog.Error("error in updating the product", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Product Update Failed"})
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *handler) DeleteProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	productID := c.Param("id")
	err := h.products.DeleteProduct(c.Request.Context(), claims.Subject, productID)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		slog.Error("error in deleting the product", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Product Deletion Failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}
