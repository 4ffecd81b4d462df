package orders

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockConf(t *testing.T) (*Conf, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conf, err := NewConf(db)
	require.NoError(t, err)
	return conf, mock
}

func catalogRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"selling_price", "available_qty", "minimum_order_qty",
		"vendor_id", "tax_rate", "tax_inclusive", "images",
	}).AddRow(100.00, 5, 1, "vendor-1", 5.0, false, []byte(`{a.jpg}`))
}

func existsRow(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}

func sampleOrder(claimedBill float64) NewOrder {
	return NewOrder{
		Items: []NewOrderItem{
			{ProductID: "p1", VariantID: "v1", Quantity: 2, ClaimedLineTotal: 200.00},
		},
		AddressID:         "addr-1",
		PaymentMode:       PaymentModeCash,
		ClaimedBillAmount: claimedBill,
	}
}

func TestCreateOrderCommitsWholeOrder(t *testing.T) {
	conf, mock := newMockConf(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM addresses`).
		WithArgs("addr-1", "buyer-1").WillReturnRows(existsRow(true))
	mock.ExpectQuery(`FROM product_variants v`).
		WithArgs("p1", "v1").WillReturnRows(catalogRows())
	mock.ExpectExec(`UPDATE product_variants SET available_qty`).
		WithArgs(2, "v1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO orders`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`INSERT INTO order_items`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO order_status_history`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "note", "created_at"}).
			AddRow(StatusPending, "order created", now))
	mock.ExpectExec(`DELETE FROM cart_items`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := conf.CreateOrder(context.Background(), "buyer-1", sampleOrder(210.00))
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-`, order.ID)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 210.00, order.BillAmount)
	assert.Equal(t, 10.00, order.TaxAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "vendor-1", order.Items[0].VendorID)
	assert.Equal(t, 200.00, order.Items[0].TotalPrice)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderBillMismatchRollsBack(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM addresses`).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery(`FROM product_variants v`).
		WillReturnRows(catalogRows())
	mock.ExpectExec(`UPDATE product_variants SET available_qty`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Claimed 310 against a computed 210: no order row, no cart delete,
	// the already-issued stock decrement rolls back with the transaction.
	mock.ExpectRollback()

	_, err := conf.CreateOrder(context.Background(), "buyer-1", sampleOrder(310.00))
	require.Error(t, err)
	assert.Equal(t, KindBillMismatch, KindOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM addresses`).
		WillReturnRows(existsRow(true))
	mock.ExpectQuery(`FROM product_variants v`).
		WillReturnRows(catalogRows())
	mock.ExpectRollback()

	no := NewOrder{
		Items: []NewOrderItem{
			{ProductID: "p1", VariantID: "v1", Quantity: 6, ClaimedLineTotal: 600.00},
		},
		AddressID:         "addr-1",
		PaymentMode:       PaymentModeCash,
		ClaimedBillAmount: 630.00,
	}
	_, err := conf.CreateOrder(context.Background(), "buyer-1", no)
	require.Error(t, err)
	assert.Equal(t, KindInsufficientStock, KindOf(err))

	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 0, oe.Index)
	assert.Equal(t, "p1", oe.ProductID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderUnknownAddressRollsBack(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM addresses`).
		WillReturnRows(existsRow(false))
	mock.ExpectRollback()

	_, err := conf.CreateOrder(context.Background(), "buyer-1", sampleOrder(210.00))
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func lockedOrderRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "status"}).AddRow("buyer-1", status)
}

func TestUpdateStatusRejectsForeignVendor(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, status FROM orders`).
		WithArgs("ORD-1").WillReturnRows(lockedOrderRow(StatusPending))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM order_items`).
		WithArgs("ORD-1", "vendor-2").WillReturnRows(existsRow(false))
	mock.ExpectRollback()

	_, err := conf.UpdateStatus(context.Background(), "ORD-1", StatusProcessing, "", "vendor-2")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusInvalidTransitionRollsBack(t *testing.T) {
	conf, mock := newMockConf(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, status FROM orders`).
		WithArgs("ORD-1").WillReturnRows(lockedOrderRow(StatusDelivered))
	mock.ExpectRollback()

	_, err := conf.UpdateStatus(context.Background(), "ORD-1", StatusProcessing, "", "")
	require.Error(t, err)
	assert.Equal(t, KindInvalidRequest, KindOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusCommitsAllowedTransition(t *testing.T) {
	conf, mock := newMockConf(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT user_id, status FROM orders`).
		WithArgs("ORD-1").WillReturnRows(lockedOrderRow(StatusPending))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM order_items`).
		WithArgs("ORD-1", "vendor-1").WillReturnRows(existsRow(true))
	mock.ExpectQuery(`UPDATE orders SET status`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "address_id", "payment_mode", "payment_id",
			"bill_amount", "tax_amount", "status", "created_at", "updated_at",
		}).AddRow("ORD-1", "addr-1", PaymentModeCash, "", 210.00, 10.00, StatusProcessing, now, now))
	mock.ExpectExec(`INSERT INTO order_status_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := conf.UpdateStatus(context.Background(), "ORD-1", StatusProcessing, "picked up", "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, order.Status)
	assert.Equal(t, "buyer-1", order.UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}
