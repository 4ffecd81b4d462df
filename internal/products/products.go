package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("variant not found")
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
		return fmt.Errorf("failed to execute withTx: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}

// InsertProduct creates the product and all of its variants in one
// transaction.
func (c *Conf) InsertProduct(ctx context.Context, vendorID string, np NewProduct) (Product, error) {
	product := Product{
		VendorID:     vendorID,
		Name:         np.Name,
		Description:  np.Description,
		Brand:        np.Brand,
		Category:     np.Category,
		SubCategory:  np.SubCategory,
		Images:       np.Images,
		Display:      true,
		TaxRate:      np.TaxRate,
		TaxInclusive: np.TaxInclusive,
	}

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		queryProduct := `
			INSERT INTO products (vendor_id, name, description, brand, category, sub_category,
			                      images, tax_rate, tax_inclusive)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, queryProduct, vendorID, np.Name, np.Description, np.Brand,
			np.Category, np.SubCategory, pq.Array(np.Images), np.TaxRate, np.TaxInclusive).
			Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting product: %w", err)
		}

		queryVariant := `
			INSERT INTO product_variants (product_id, unit, unit_price, selling_price,
			                              available_qty, minimum_order_qty)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at
		`
		for _, nv := range np.Variants {
			variant := Variant{
				ProductID:       product.ID,
				Unit:            nv.Unit,
				UnitPrice:       nv.UnitPrice,
				SellingPrice:    nv.SellingPrice,
				AvailableQty:    nv.AvailableQty,
				MinimumOrderQty: nv.MinimumOrderQty,
			}
			err := tx.QueryRowContext(ctx, queryVariant, product.ID, nv.Unit, nv.UnitPrice,
				nv.SellingPrice, nv.AvailableQty, nv.MinimumOrderQty).
				Scan(&variant.ID, &variant.CreatedAt, &variant.UpdatedAt)
			if err != nil {
				return fmt.Errorf("inserting variant: %w", err)
			}
			product.Variants = append(product.Variants, variant)
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

func (c *Conf) GetProductByID(ctx context.Context, productID string) (Product, error) {
	query := `
		SELECT id, vendor_id, name, description, brand, category, COALESCE(sub_category, ''),
		       images, display, tax_rate, tax_inclusive, created_at, updated_at
		FROM products WHERE id = $1
	`
	var p Product
	err := c.db.QueryRowContext(ctx, query, productID).Scan(&p.ID, &p.VendorID, &p.Name,
		&p.Description, &p.Brand, &p.Category, &p.SubCategory, pq.Array(&p.Images),
		&p.Display, &p.TaxRate, &p.TaxInclusive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("querying product: %w", err)
	}

	variants, err := c.variantsOf(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	p.Variants = variants
	return p, nil
}

func (c *Conf) variantsOf(ctx context.Context, productID string) ([]Variant, error) {
	query := `
		SELECT id, product_id, unit, unit_price, selling_price, available_qty, minimum_order_qty,
		       created_at, updated_at
		FROM product_variants WHERE product_id = $1 ORDER BY created_at
	`
	rows, err := c.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("querying variants: %w", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Unit, &v.UnitPrice, &v.SellingPrice,
			&v.AvailableQty, &v.MinimumOrderQty, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating variants: %w", err)
	}
	return variants, nil
}

// GetVariant returns one variant of one product.
func (c *Conf) GetVariant(ctx context.Context, productID, variantID string) (Variant, error) {
	query := `
		SELECT id, product_id, unit, unit_price, selling_price, available_qty, minimum_order_qty,
		       created_at, updated_at
		FROM product_variants WHERE id = $1 AND product_id = $2
	`
	var v Variant
	err := c.db.QueryRowContext(ctx, query, variantID, productID).Scan(&v.ID, &v.ProductID,
		&v.Unit, &v.UnitPrice, &v.SellingPrice, &v.AvailableQty, &v.MinimumOrderQty,
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Variant{}, ErrVariantNotFound
	}
	if err != nil {
		return Variant{}, fmt.Errorf("querying variant: %w", err)
	}
	return v, nil
}

// UpdateProduct replaces the mutable catalog fields. Variants are managed
// through their own statements; committed orders are never affected since
// they hold snapshots.
func (c *Conf) UpdateProduct(ctx context.Context, vendorID, productID string, np NewProduct) (Product, error) {
	query := `
		UPDATE products
		SET name = $1, description = $2, brand = $3, category = $4, sub_category = $5,
		    images = $6, tax_rate = $7, tax_inclusive = $8, updated_at = NOW()
		WHERE id = $9 AND vendor_id = $10
	`
	result, err := c.db.ExecContext(ctx, query, np.Name, np.Description, np.Brand, np.Category,
		np.SubCategory, pq.Array(np.Images), np.TaxRate, np.TaxInclusive, productID, vendorID)
	if err != nil {
		return Product{}, fmt.Errorf("updating product: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return Product{}, fmt.Errorf("checking update: %w", err)
	}
	if rows == 0 {
		return Product{}, ErrProductNotFound
	}
	return c.GetProductByID(ctx, productID)
}

func (c *Conf) DeleteProduct(ctx context.Context, vendorID, productID string) error {
	result, err := c.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1 AND vendor_id = $2`, productID, vendorID)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ListByVendors pages through displayable products belonging to the given
// vendor set. This is the buyer-visible catalog: the set comes from the
// buyer's cached nearby vendors.
func (c *Conf) ListByVendors(ctx context.Context, vendorIDs []string, limit, offset int) ([]Product, int, error) {
	if len(vendorIDs) == 0 {
		return nil, 0, nil
	}

	var total int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE vendor_id = ANY($1) AND display`, pq.Array(vendorIDs)).
		Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	query := `
		SELECT id, vendor_id, name, description, brand, category, COALESCE(sub_category, ''),
		       images, display, tax_rate, tax_inclusive, created_at, updated_at
		FROM products
		WHERE vendor_id = ANY($1) AND display
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := c.db.QueryContext(ctx, query, pq.Array(vendorIDs), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var list []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.VendorID, &p.Name, &p.Description, &p.Brand, &p.Category,
			&p.SubCategory, pq.Array(&p.Images), &p.Display, &p.TaxRate, &p.TaxInclusive,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning product: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating products: %w", err)
	}

	for i := range list {
		variants, err := c.variantsOf(ctx, list[i].ID)
		if err != nil {
			return nil, 0, err
		}
		list[i].Variants = variants
	}
	return list, total, nil
}
