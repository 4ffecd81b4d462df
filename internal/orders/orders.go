package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
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

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}

// CreateOrder validates the proposed cart against live catalog state and,
// only if every item passes, commits the order atomically: stock decrement,
// order rows and cart cleanup all happen in one transaction. Any failure
// rolls everything back.
func (c *Conf) CreateOrder(ctx context.Context, userID string, no NewOrder) (Order, error) {
	if len(no.Items) == 0 {
		return Order{}, newError(KindInvalidRequest, "cart is empty")
	}
	if no.PaymentMode != PaymentModeCash && no.PaymentMode != PaymentModeOnline {
		return Order{}, newError(KindInvalidRequest, "payment mode must be cash or online")
	}

	orderID, err := newOrderID()
	if err != nil {
		return Order{}, err
	}

	var order Order
	err = c.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`,
			no.AddressID, userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("resolving address: %w", err)
		}
		if !exists {
			return newError(KindNotFound, "address %s not found", no.AddressID)
		}

		lines := make([]LineItem, 0, len(no.Items))
		for i, item := range no.Items {
			cl, err := c.lockCatalogLine(ctx, tx, i, item)
			if err != nil {
				return err
			}
			line, err := buildLine(i, item, cl)
			if err != nil {
				return err
			}

			// Reservation: decrement inside the same transaction, against
			// the quantity just re-read under the row lock.
			_, err = tx.ExecContext(ctx,
				`UPDATE product_variants SET available_qty = available_qty - $1, updated_at = NOW() WHERE id = $2`,
				item.Quantity, item.VariantID)
			if err != nil {
				return fmt.Errorf("reserving stock for variant %s: %w", item.VariantID, err)
			}

			lines = append(lines, line)
		}

		_, taxAmount, totalBill := computeBill(lines)
		if !withinTolerance(no.ClaimedBillAmount, totalBill) {
			return newError(KindBillMismatch,
				"claimed bill amount %.2f, computed %.2f", no.ClaimedBillAmount, totalBill)
		}

		queryOrder := `
			INSERT INTO orders (id, user_id, address_id, payment_mode, payment_id, bill_amount, tax_amount, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`
		order = Order{
			ID:          orderID,
			UserID:      userID,
			AddressID:   no.AddressID,
			PaymentMode: no.PaymentMode,
			PaymentID:   no.PaymentID,
			BillAmount:  totalBill,
			TaxAmount:   taxAmount,
			Status:      StatusPending,
			Items:       lines,
		}
		err = tx.QueryRowContext(ctx, queryOrder, orderID, userID, no.AddressID, no.PaymentMode,
			no.PaymentID, totalBill, taxAmount, StatusPending).
			Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		queryItem := `
			INSERT INTO order_items (order_id, product_id, variant_id, vendor_id, quantity,
			                         unit_price, total_price, tax_rate, tax_inclusive, images)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		productIDs := make([]string, 0, len(lines))
		for _, line := range lines {
			_, err := tx.ExecContext(ctx, queryItem, orderID, line.ProductID, line.VariantID,
				line.VendorID, line.Quantity, line.UnitPrice, line.TotalPrice,
				line.TaxRate, line.TaxInclusive, pq.Array(line.Images))
			if err != nil {
				return fmt.Errorf("inserting order item: %w", err)
			}
			productIDs = append(productIDs, line.ProductID)
		}

		var first StatusChange
		err = tx.QueryRowContext(ctx,
			`INSERT INTO order_status_history (order_id, status, note) VALUES ($1, $2, $3) RETURNING status, note, created_at`,
			orderID, StatusPending, "order created").Scan(&first.Status, &first.Note, &first.Date)
		if err != nil {
			return fmt.Errorf("inserting status history: %w", err)
		}
		order.StatusHistory = []StatusChange{first}

		// The cart lines this order consumed are gone once it commits.
		_, err = tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`,
			userID, pq.Array(productIDs))
		if err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// lockCatalogLine re-reads the authoritative variant row under FOR UPDATE so
// concurrent orders against the same variant serialize on the stock check.
func (c *Conf) lockCatalogLine(ctx context.Context, tx *sql.Tx, index int, item NewOrderItem) (catalogLine, error) {
	query := `
		SELECT v.selling_price, v.available_qty, v.minimum_order_qty,
		       p.vendor_id, p.tax_rate, p.tax_inclusive, p.images
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE p.id = $1 AND v.id = $2
		FOR UPDATE OF v
	`
	var cl catalogLine
	err := tx.QueryRowContext(ctx, query, item.ProductID, item.VariantID).
		Scan(&cl.SellingPrice, &cl.AvailableQty, &cl.MinimumOrderQty,
			&cl.VendorID, &cl.TaxRate, &cl.TaxInclusive, pq.Array(&cl.Images))
	if errors.Is(err, sql.ErrNoRows) {
		var productExists bool
		if er := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, item.ProductID).Scan(&productExists); er != nil {
			return catalogLine{}, fmt.Errorf("checking product: %w", er)
		}
		if !productExists {
			return catalogLine{}, newItemError(KindNotFound, index, item.ProductID, "product not found")
		}
		return catalogLine{}, newItemError(KindNotFound, index, item.ProductID,
			"variant %s not found", item.VariantID)
	}
	if err != nil {
		return catalogLine{}, fmt.Errorf("fetching variant: %w", err)
	}
	return cl, nil
}

// UpdateStatus moves the order to newStatus when the transition table
// allows it, appending a history entry. A non-empty vendorID restricts the
// update to orders that carry that vendor's lines; vendors cannot touch
// other vendors' orders. Returns the updated order header so callers can
// emit the status-changed event.
func (c *Conf) UpdateStatus(ctx context.Context, orderID, newStatus, note, vendorID string) (Order, error) {
	if !ValidStatus(newStatus) {
		return Order{}, newError(KindInvalidRequest, "unknown status %q", newStatus)
	}

	var order Order
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, status FROM orders WHERE id = $1 FOR UPDATE`, orderID).
			Scan(&order.UserID, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return newError(KindNotFound, "order %s not found", orderID)
		}
		if err != nil {
			return fmt.Errorf("locking order: %w", err)
		}

		if vendorID != "" {
			var hasLines bool
			err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM order_items WHERE order_id = $1 AND vendor_id = $2)`,
				orderID, vendorID).Scan(&hasLines)
			if err != nil {
				return fmt.Errorf("checking vendor lines: %w", err)
			}
			if !hasLines {
				return newError(KindNotFound, "order %s not found", orderID)
			}
		}

		if !CanTransition(current, newStatus) {
			return newError(KindInvalidRequest,
				"cannot transition order from %s to %s", current, newStatus)
		}

		err = tx.QueryRowContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2
			 RETURNING id, address_id, payment_mode, payment_id, bill_amount, tax_amount, status, created_at, updated_at`,
			newStatus, orderID).
			Scan(&order.ID, &order.AddressID, &order.PaymentMode, &order.PaymentID,
				&order.BillAmount, &order.TaxAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("updating status: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_status_history (order_id, status, note) VALUES ($1, $2, $3)`,
			orderID, newStatus, note)
		if err != nil {
			return fmt.Errorf("appending status history: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// GetOrder returns the full order detail: header, line snapshots and
// status history.
func (c *Conf) GetOrder(ctx context.Context, orderID string) (Order, error) {
	query := `
		SELECT id, user_id, address_id, payment_mode, payment_id, bill_amount, tax_amount,
		       status, created_at, updated_at
		FROM orders WHERE id = $1
	`
	var order Order
	err := c.db.QueryRowContext(ctx, query, orderID).Scan(&order.ID, &order.UserID,
		&order.AddressID, &order.PaymentMode, &order.PaymentID, &order.BillAmount,
		&order.TaxAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, newError(KindNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return Order{}, fmt.Errorf("querying order: %w", err)
	}

	order.Items, err = c.itemsOf(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	order.StatusHistory, err = c.historyOf(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (c *Conf) itemsOf(ctx context.Context, orderID string) ([]LineItem, error) {
	query := `
		SELECT product_id, variant_id, vendor_id, quantity, unit_price, total_price,
		       tax_rate, tax_inclusive, images
		FROM order_items WHERE order_id = $1 ORDER BY id
	`
	rows, err := c.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var line LineItem
		if err := rows.Scan(&line.ProductID, &line.VariantID, &line.VendorID, &line.Quantity,
			&line.UnitPrice, &line.TotalPrice, &line.TaxRate, &line.TaxInclusive,
			pq.Array(&line.Images)); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items = append(items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}
	return items, nil
}

func (c *Conf) historyOf(ctx context.Context, orderID string) ([]StatusChange, error) {
	query := `
		SELECT status, note, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY id
	`
	rows, err := c.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	var history []StatusChange
	for rows.Next() {
		var change StatusChange
		if err := rows.Scan(&change.Status, &change.Note, &change.Date); err != nil {
			return nil, fmt.Errorf("scanning status change: %w", err)
		}
		history = append(history, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status history: %w", err)
	}
	return history, nil
}

// ListByUser returns the buyer's order headers, newest first.
func (c *Conf) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	query := `
		SELECT id, user_id, address_id, payment_mode, payment_id, bill_amount, tax_amount,
		       status, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var list []Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.AddressID, &order.PaymentMode,
			&order.PaymentID, &order.BillAmount, &order.TaxAmount, &order.Status,
			&order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		list = append(list, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return list, nil
}

// VendorOrders pages through orders containing this vendor's products,
// restricted to the vendor's own lines with the amount owed to them.
func (c *Conf) VendorOrders(ctx context.Context, vendorID string, page, pageSize int) ([]VendorOrder, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	var total int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT order_id) FROM order_items WHERE vendor_id = $1`, vendorID).
		Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting vendor orders: %w", err)
	}

	query := `
		SELECT o.id, o.user_id, o.address_id, o.payment_mode, o.payment_id, o.status, o.created_at
		FROM orders o
		WHERE EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id AND oi.vendor_id = $1)
		ORDER BY o.created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := c.db.QueryContext(ctx, query, vendorID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying vendor orders: %w", err)
	}
	defer rows.Close()

	var list []VendorOrder
	for rows.Next() {
		var vo VendorOrder
		if err := rows.Scan(&vo.OrderID, &vo.UserID, &vo.AddressID, &vo.PaymentMode,
			&vo.PaymentID, &vo.Status, &vo.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning vendor order: %w", err)
		}
		list = append(list, vo)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating vendor orders: %w", err)
	}

	for i := range list {
		items, err := c.vendorItemsOf(ctx, list[i].OrderID, vendorID)
		if err != nil {
			return nil, 0, err
		}
		list[i].Items = items
		for _, line := range items {
			list[i].VenOrderAmount += line.TotalPrice
		}
		list[i].VenOrderAmount = round2(list[i].VenOrderAmount)
	}
	return list, total, nil
}

func (c *Conf) vendorItemsOf(ctx context.Context, orderID, vendorID string) ([]LineItem, error) {
	query := `
		SELECT product_id, variant_id, vendor_id, quantity, unit_price, total_price,
		       tax_rate, tax_inclusive, images
		FROM order_items WHERE order_id = $1 AND vendor_id = $2 ORDER BY id
	`
	rows, err := c.db.QueryContext(ctx, query, orderID, vendorID)
	if err != nil {
		return nil, fmt.Errorf("querying vendor order items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var line LineItem
		if err := rows.Scan(&line.ProductID, &line.VariantID, &line.VendorID, &line.Quantity,
			&line.UnitPrice, &line.TotalPrice, &line.TaxRate, &line.TaxInclusive,
			pq.Array(&line.Images)); err != nil {
			return nil, fmt.Errorf("scanning vendor order item: %w", err)
		}
		items = append(items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vendor order items: %w", err)
	}
	return items, nil
}
