package orders

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
)

// PriceTolerance is the absolute tolerance, in currency units, when
// comparing client-claimed amounts against server-computed ones.
const PriceTolerance = 0.01

const orderIDPrefix = "ORD"

// round2 rounds to two decimal places, the resolution of the currency.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// withinTolerance compares in whole cents: raw float subtraction puts the
// exact-0.01 boundary on the wrong side at some magnitudes.
func withinTolerance(claimed, computed float64) bool {
	return math.Round(math.Abs(claimed-computed)*100) <= math.Round(PriceTolerance*100)
}

// catalogLine is the authoritative variant state re-fetched inside the
// order transaction, with the product fields that get snapshotted.
type catalogLine struct {
	SellingPrice    float64
	AvailableQty    int
	MinimumOrderQty int
	VendorID        string
	TaxRate         float64
	TaxInclusive    bool
	Images          []string
}

// buildLine validates one cart item against the live catalog state and
// returns its frozen snapshot. The returned error carries the item index
// and product id.
func buildLine(index int, item NewOrderItem, cl catalogLine) (LineItem, error) {
	if item.Quantity < cl.MinimumOrderQty {
		return LineItem{}, newItemError(KindBelowMinimumOrder, index, item.ProductID,
			"quantity %d is below the minimum order quantity %d", item.Quantity, cl.MinimumOrderQty)
	}
	if item.Quantity > cl.AvailableQty {
		return LineItem{}, newItemError(KindInsufficientStock, index, item.ProductID,
			"requested %d, available %d", item.Quantity, cl.AvailableQty)
	}

	lineTotal := round2(float64(item.Quantity) * cl.SellingPrice)
	if !withinTolerance(item.ClaimedLineTotal, lineTotal) {
		return LineItem{}, newItemError(KindPriceMismatch, index, item.ProductID,
			"claimed line total %.2f, current price gives %.2f", item.ClaimedLineTotal, lineTotal)
	}

	return LineItem{
		ProductID:    item.ProductID,
		VariantID:    item.VariantID,
		VendorID:     cl.VendorID,
		Quantity:     item.Quantity,
		UnitPrice:    cl.SellingPrice,
		TotalPrice:   lineTotal,
		TaxRate:      cl.TaxRate,
		TaxInclusive: cl.TaxInclusive,
		Images:       cl.Images,
	}, nil
}

// computeBill sums line totals and adds tax for lines whose listed price
// does not already contain it.
func computeBill(lines []LineItem) (subtotal, taxAmount, total float64) {
	for _, line := range lines {
		subtotal += line.TotalPrice
		if !line.TaxInclusive {
			taxAmount += line.TotalPrice * line.TaxRate / 100
		}
	}
	taxAmount = round2(taxAmount)
	total = round2(subtotal + taxAmount)
	return subtotal, taxAmount, total
}

// newOrderID generates a human-readable order identifier: a fixed prefix
// with a random suffix.
func newOrderID() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	suffix := make([]byte, 10)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("generating order id: %w", err)
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s", orderIDPrefix, suffix), nil
}
