package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/auth"
	"marketplace-service/internal/orders"
	"marketplace-service/internal/stores/kafka"
	"marketplace-service/internal/users"
	"marketplace-service/pkg/ctxmanage"
	"marketplace-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

// orderErrorStatus maps the structured order failure kinds onto HTTP codes.
var orderErrorStatus = map[orders.Kind]int{
	orders.KindInvalidRequest:    http.StatusBadRequest,
	orders.KindNotFound:          http.StatusNotFound,
	orders.KindBelowMinimumOrder: http.StatusUnprocessableEntity,
	orders.KindInsufficientStock: http.StatusConflict,
	orders.KindPriceMismatch:     http.StatusConflict,
	orders.KindBillMismatch:      http.StatusConflict,
	orders.KindExternalService:   http.StatusBadGateway,
	orders.KindPersistence:       http.StatusInternalServerError,
}

func (h *handler) orderError(c *gin.Context, traceId string, err error) {
	kind := orders.KindOf(err)
	status, ok := orderErrorStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		slog.Error("order operation failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"kind": kind}})
		return
	}

	body := gin.H{"kind": kind, "message": err.Error()}
	var oe *orders.Error
	if errors.As(err, &oe) && oe.Index >= 0 {
		body["item_index"] = oe.Index
		body["product_id"] = oe.ProductID
		body["message"] = oe.Message
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func (h *handler) Checkout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var newOrder orders.NewOrder
	if !h.bindAndValidate(c, &newOrder) {
		return
	}

	// Reject a bad address before touching any stock. The transaction
	// re-checks it under its own read.
	if _, err := h.users.ResolveAddress(c.Request.Context(), claims.Subject, newOrder.AddressID); err != nil {
		if errors.Is(err, users.ErrAddressNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound,
				gin.H{"error": gin.H{"kind": orders.KindNotFound, "message": "address not found"}})
			return
		}
		slog.Error("error in resolving the address", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": orders.KindPersistence}})
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), claims.Subject, newOrder)
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}

	slog.Info("order created", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.OrderID, order.ID), slog.String(logkey.UserID, order.UserID))

	// The order is committed regardless of whether the event makes it out.
	h.emitStatusEvent(traceId, order, "order created")

	c.JSON(http.StatusCreated, order)
}

func (h *handler) GetOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}

	if order.UserID != claims.Subject && !claims.HasRole(auth.RoleAdmin) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": orders.KindNotFound}})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *handler) ListOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	list, err := h.orders.ListByUser(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error in listing orders", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list})
}

// VendorOrders lists orders containing the vendor's products, reduced to
// the vendor's lines and amount.
func (h *handler) VendorOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		page = 1
	}
	const pageSize = 50

	list, total, err := h.orders.VendorOrders(c.Request.Context(), claims.Subject, page, pageSize)
	if err != nil {
		slog.Error("error in listing vendor orders", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list, "total": total, "page": page})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

func (h *handler) UpdateOrderStatus(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	claims, ok := currentClaims(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	// Admins may move any order; a vendor only orders carrying their lines.
	vendorScope := claims.Subject
	if claims.HasRole(auth.RoleAdmin) {
		vendorScope = ""
	}

	orderID := c.Param("id")
	order, err := h.orders.UpdateStatus(c.Request.Context(), orderID, req.Status, req.Note, vendorScope)
	if err != nil {
		h.orderError(c, traceId, err)
		return
	}

	slog.Info("order status updated", slog.String(logkey.TraceID, traceId),
		slog.String(logkey.OrderID, order.ID), slog.String(logkey.Status, order.Status))

	h.emitStatusEvent(traceId, order, req.Note)

	c.JSON(http.StatusOK, order)
}

// emitStatusEvent publishes the status change for the notification
// consumer. Best effort: the state change has already committed, so a
// publish failure is logged and swallowed.
func (h *handler) emitStatusEvent(traceId string, order orders.Order, note string) {
	event := kafka.OrderStatusChangedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshalling status event failed", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, order.ID), slog.String(logkey.ERROR, err.Error()))
		return
	}

	go func() {
		if err := h.kafka.ProduceMessage(kafka.TopicOrderStatusChanged, []byte(order.ID), payload); err != nil {
			slog.Error("publishing status event failed", slog.String(logkey.TraceID, traceId),
				slog.String(logkey.OrderID, order.ID), slog.String(logkey.ERROR, err.Error()))
		}
	}()
}
