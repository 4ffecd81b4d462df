package orders

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLine(t *testing.T) {
	cl := catalogLine{
		SellingPrice:    100.00,
		AvailableQty:    5,
		MinimumOrderQty: 2,
		VendorID:        "vendor-1",
		TaxRate:         5,
		TaxInclusive:    false,
		Images:          []string{"a.jpg"},
	}

	t.Run("quantity equal to minimum and stock succeeds", func(t *testing.T) {
		boundary := cl
		boundary.AvailableQty = 2
		item := NewOrderItem{ProductID: "p1", VariantID: "v1", Quantity: 2, ClaimedLineTotal: 200.00}

		line, err := buildLine(0, item, boundary)
		require.NoError(t, err)
		assert.Equal(t, 200.00, line.TotalPrice)
		assert.Equal(t, "vendor-1", line.VendorID)
		assert.Equal(t, 100.00, line.UnitPrice)
	})

	t.Run("quantity below minimum order fails", func(t *testing.T) {
		item := NewOrderItem{ProductID: "p1", VariantID: "v1", Quantity: 1, ClaimedLineTotal: 100.00}

		_, err := buildLine(3, item, cl)
		require.Error(t, err)
		assert.Equal(t, KindBelowMinimumOrder, KindOf(err))

		var oe *Error
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, 3, oe.Index)
		assert.Equal(t, "p1", oe.ProductID)
	})

	t.Run("quantity above available stock fails", func(t *testing.T) {
		item := NewOrderItem{ProductID: "p1", VariantID: "v1", Quantity: 6, ClaimedLineTotal: 600.00}

		_, err := buildLine(0, item, cl)
		assert.Equal(t, KindInsufficientStock, KindOf(err))
	})

	t.Run("claimed total within tolerance passes", func(t *testing.T) {
		item := NewOrderItem{ProductID: "p1", VariantID: "v1", Quantity: 2, ClaimedLineTotal: 200.01}

		_, err := buildLine(0, item, cl)
		assert.NoError(t, err)
	})

	t.Run("claimed total beyond tolerance fails", func(t *testing.T) {
		item := NewOrderItem{ProductID: "p1", VariantID: "v1", Quantity: 2, ClaimedLineTotal: 200.02}

		_, err := buildLine(0, item, cl)
		assert.Equal(t, KindPriceMismatch, KindOf(err))
	})

	t.Run("snapshot carries catalog tax fields", func(t *testing.T) {
		item := NewOrderItem{ProductID: "p1", VariantID: "v1", Quantity: 2, ClaimedLineTotal: 200.00}

		line, err := buildLine(0, item, cl)
		require.NoError(t, err)
		assert.Equal(t, 5.0, line.TaxRate)
		assert.False(t, line.TaxInclusive)
		assert.Equal(t, []string{"a.jpg"}, line.Images)
	})
}

func TestComputeBill(t *testing.T) {
	t.Run("tax added only for non-inclusive lines", func(t *testing.T) {
		lines := []LineItem{
			{TotalPrice: 200.00, TaxRate: 5, TaxInclusive: false},
			{TotalPrice: 100.00, TaxRate: 18, TaxInclusive: true},
		}

		subtotal, taxAmount, total := computeBill(lines)
		assert.Equal(t, 300.00, subtotal)
		assert.Equal(t, 10.00, taxAmount)
		assert.Equal(t, 310.00, total)
	})

	t.Run("all inclusive lines carry no extra tax", func(t *testing.T) {
		lines := []LineItem{
			{TotalPrice: 59.99, TaxRate: 12, TaxInclusive: true},
		}

		subtotal, taxAmount, total := computeBill(lines)
		assert.Equal(t, 59.99, subtotal)
		assert.Equal(t, 0.00, taxAmount)
		assert.Equal(t, 59.99, total)
	})

	t.Run("fractional tax rounds to currency resolution", func(t *testing.T) {
		lines := []LineItem{
			{TotalPrice: 33.33, TaxRate: 5, TaxInclusive: false},
		}

		_, taxAmount, total := computeBill(lines)
		assert.Equal(t, 1.67, taxAmount)
		assert.Equal(t, 35.00, total)
	})

	t.Run("empty order is zero", func(t *testing.T) {
		subtotal, taxAmount, total := computeBill(nil)
		assert.Zero(t, subtotal)
		assert.Zero(t, taxAmount)
		assert.Zero(t, total)
	})
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, withinTolerance(100.00, 100.00))
	assert.False(t, withinTolerance(100.02, 100.00))
	assert.False(t, withinTolerance(99.98, 100.00))

	// The exact one-cent boundary must be accepted at every magnitude;
	// 100.01-100.00 is slightly more than 0.01 in float64.
	for _, computed := range []float64{0.01, 1.00, 99.99, 100.00, 200.00, 310.00, 999999.99} {
		assert.True(t, withinTolerance(computed+0.01, computed), "computed %v +1c", computed)
		assert.True(t, withinTolerance(computed-0.01, computed), "computed %v -1c", computed)
		assert.False(t, withinTolerance(computed+0.02, computed), "computed %v +2c", computed)
		assert.False(t, withinTolerance(computed-0.02, computed), "computed %v -2c", computed)
	}
}

func TestNewOrderID(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-[A-HJ-NP-Z2-9]{10}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := newOrderID()
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "duplicate order id %s", id)
		seen[id] = true
	}
}
