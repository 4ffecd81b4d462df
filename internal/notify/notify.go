// Package notify turns order status events into stored user notifications.
// It consumes the status-changed topic and writes one notification row per
// (order, status); duplicate deliveries are absorbed by the unique index.
package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"marketplace-service/internal/stores/kafka"
	"marketplace-service/pkg/logkey"
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// Notification is one stored user-facing message.
type Notification struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	IsSeen  bool   `json:"is_seen"`
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

var statusTitles = map[string]string{
	"pending":    "Order placed",
	"processing": "Order confirmed",
	"shipped":    "Order shipped",
	"delivered":  "Order delivered",
	"cancelled":  "Order cancelled",
}

// HandleStatusEvent is the kafka.Handler for order status events. Inserting
// is idempotent: a redelivered event hits the unique (order_id, status)
// index and becomes a no-op.
func (c *Conf) HandleStatusEvent(ctx context.Context, key, value []byte) error {
	var event kafka.OrderStatusChangedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		// Malformed payloads would never succeed on retry; log and drop.
		slog.Error("dropping malformed status event",
			slog.String(logkey.ERROR, err.Error()), slog.String("Key", string(key)))
		return nil
	}
	if event.OrderID == "" || event.UserID == "" || event.Status == "" {
		slog.Error("dropping incomplete status event", slog.String("Key", string(key)))
		return nil
	}

	title, ok := statusTitles[event.Status]
	if !ok {
		title = "Order update"
	}
	text := fmt.Sprintf("Your order %s is now %s.", event.OrderID, event.Status)
	if event.Note != "" {
		text = fmt.Sprintf("%s %s", text, event.Note)
	}

	query := `
		INSERT INTO notifications (user_id, title, text, order_id, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, status) WHERE order_id <> '' DO NOTHING
	`
	_, err := c.db.ExecContext(ctx, query, event.UserID, title, text, event.OrderID, event.Status)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	slog.Info("notification stored", slog.String(logkey.OrderID, event.OrderID),
		slog.String(logkey.Status, event.Status), slog.String(logkey.UserID, event.UserID))
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (c *Conf) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	query := `
		SELECT id, user_id, title, text, is_seen, order_id, status
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var list []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Text, &n.IsSeen, &n.OrderID, &n.Status); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return list, nil
}

// MarkSeen flags one notification as read, scoped to its owner.
func (c *Conf) MarkSeen(ctx context.Context, userID, notificationID string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE notifications SET is_seen = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID, userID)
	if err != nil {
		return fmt.Errorf("marking notification seen: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var ErrNotFound = errors.New("notification not found")
