package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrItemNotFound = errors.New("cart item not found")

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (Conf, error) {
	if db == nil {
		return Conf{}, fmt.Errorf("db is nil")
	}
	return Conf{db: db}, nil
}

// AddItem inserts a cart line, merging into the existing row for the same
// (buyer, product, variant) by summing quantities.
func (c *Conf) AddItem(ctx context.Context, userID string, ni NewItem) (Item, error) {
	query := `
		INSERT INTO cart_items (user_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, user_id, product_id, variant_id, quantity, created_at, updated_at
	`
	var item Item
	err := c.db.QueryRowContext(ctx, query, userID, ni.ProductID, ni.VariantID, ni.Quantity).
		Scan(&item.ID, &item.UserID, &item.ProductID, &item.VariantID, &item.Quantity,
			&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Item{}, fmt.Errorf("upserting cart item: %w", err)
	}
	return item, nil
}

func (c *Conf) Items(ctx context.Context, userID string) ([]Item, error) {
	query := `
		SELECT id, user_id, product_id, variant_id, quantity, created_at, updated_at
		FROM cart_items WHERE user_id = $1 ORDER BY created_at
	`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying cart items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.VariantID,
			&item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cart items: %w", err)
	}
	return items, nil
}

func (c *Conf) DeleteItem(ctx context.Context, userID, itemID string) error {
	result, err := c.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("deleting cart item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if rows == 0 {
		return ErrItemNotFound
	}
	return nil
}
