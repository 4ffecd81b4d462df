package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-service/internal/proximity"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
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

func (c *Conf) InsertUser(ctx context.Context, nu NewUser) (User, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, nu.Email).Scan(&exists)
	if err != nil {
		return User{}, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return User{}, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	query := `
		INSERT INTO users (name, email, password_hash, mobile, user_type,
		                   shop_name, shop_address, gst, shop_lat, shop_lng, service_radius_km)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	user := User{
		Name:            nu.Name,
		Email:           nu.Email,
		Mobile:          nu.Mobile,
		UserType:        nu.UserType,
		ShopName:        nu.ShopName,
		ShopAddress:     nu.ShopAddress,
		Gst:             nu.Gst,
		ShopLat:         nu.ShopLat,
		ShopLng:         nu.ShopLng,
		ServiceRadiusKm: nu.ServiceRadiusKm,
	}
	err = c.db.QueryRowContext(ctx, query, nu.Name, nu.Email, string(hash), nu.Mobile, nu.UserType,
		nu.ShopName, nu.ShopAddress, nu.Gst, nu.ShopLat, nu.ShopLng, nu.ServiceRadiusKm).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("inserting user: %w", err)
	}
	return user, nil
}

// Authenticate verifies email and password, returning the user on success.
func (c *Conf) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := c.getByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.passwordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (c *Conf) GetUserByID(ctx context.Context, id string) (User, error) {
	query := `
		SELECT id, name, email, mobile, user_type, COALESCE(shop_name, ''),
		       COALESCE(shop_address, ''), COALESCE(gst, ''),
		       shop_lat, shop_lng, service_radius_km, created_at, updated_at
		FROM users WHERE id = $1
	`
	var user User
	err := c.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Name, &user.Email, &user.Mobile,
		&user.UserType, &user.ShopName, &user.ShopAddress, &user.Gst,
		&user.ShopLat, &user.ShopLng, &user.ServiceRadiusKm, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

func (c *Conf) getByEmail(ctx context.Context, email string) (User, error) {
	query := `
		SELECT id, name, email, mobile, user_type, password_hash,
		       shop_lat, shop_lng, service_radius_km
		FROM users WHERE email = $1
	`
	var user User
	err := c.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Name, &user.Email, &user.Mobile,
		&user.UserType, &user.passwordHash, &user.ShopLat, &user.ShopLng, &user.ServiceRadiusKm)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("querying user by email: %w", err)
	}
	return user, nil
}

// ResetPassword replaces the password for the account with this email.
func (c *Conf) ResetPassword(ctx context.Context, email, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	result, err := c.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE email = $2`, string(hash), email)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListVendorSites returns every vendor with a usable shop location and
// radius, in the shape the proximity matcher scans.
func (c *Conf) ListVendorSites(ctx context.Context) ([]proximity.VendorSite, error) {
	query := `
		SELECT id, COALESCE(shop_address, ''), shop_lat, shop_lng, service_radius_km
		FROM users
		WHERE user_type = $1
		  AND shop_lat IS NOT NULL AND shop_lng IS NOT NULL
		  AND service_radius_km IS NOT NULL AND service_radius_km > 0
	`
	rows, err := c.db.QueryContext(ctx, query, TypeVendor)
	if err != nil {
		return nil, fmt.Errorf("querying vendor sites: %w", err)
	}
	defer rows.Close()

	var sites []proximity.VendorSite
	for rows.Next() {
		var site proximity.VendorSite
		if err := rows.Scan(&site.VendorID, &site.Address, &site.Point.Lat, &site.Point.Lng, &site.RadiusKm); err != nil {
			return nil, fmt.Errorf("scanning vendor site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vendor sites: %w", err)
	}
	return sites, nil
}

// ListBuyerPoints returns the most recent located delivery address per buyer.
func (c *Conf) ListBuyerPoints(ctx context.Context) ([]proximity.BuyerPoint, error) {
	query := `
		SELECT DISTINCT ON (a.user_id) a.user_id, a.address, a.lat, a.lng
		FROM addresses a
		JOIN users u ON u.id = a.user_id
		WHERE u.user_type = $1 AND a.lat IS NOT NULL AND a.lng IS NOT NULL
		ORDER BY a.user_id, a.updated_at DESC
	`
	rows, err := c.db.QueryContext(ctx, query, TypeBuyer)
	if err != nil {
		return nil, fmt.Errorf("querying buyer points: %w", err)
	}
	defer rows.Close()

	var buyers []proximity.BuyerPoint
	for rows.Next() {
		var bp proximity.BuyerPoint
		if err := rows.Scan(&bp.BuyerID, &bp.Address, &bp.Point.Lat, &bp.Point.Lng); err != nil {
			return nil, fmt.Errorf("scanning buyer point: %w", err)
		}
		buyers = append(buyers, bp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating buyer points: %w", err)
	}
	return buyers, nil
}

// ReplaceNearbyVendors overwrites the buyer's cached vendor set wholesale.
// Called only by the matcher path after an address update.
func (c *Conf) ReplaceNearbyVendors(ctx context.Context, userID string, vendorIDs []string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_vendors WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clearing vendor cache: %w", err)
	}
	for _, vendorID := range vendorIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_vendors (user_id, vendor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, vendorID)
		if err != nil {
			return fmt.Errorf("caching vendor %s: %w", vendorID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vendor cache: %w", err)
	}
	return nil
}

// AddNearbyVendor adds one vendor to a buyer's cached set without touching
// the rest of the set.
func (c *Conf) AddNearbyVendor(ctx context.Context, userID, vendorID string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO user_vendors (user_id, vendor_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, vendorID)
	if err != nil {
		return fmt.Errorf("adding vendor to cache: %w", err)
	}
	return nil
}

// NearbyVendorIDs reads the buyer's cached vendor set.
func (c *Conf) NearbyVendorIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT vendor_id FROM user_vendors WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying vendor cache: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning vendor id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vendor cache: %w", err)
	}
	return ids, nil
}
