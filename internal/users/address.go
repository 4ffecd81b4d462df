package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrAddressNotFound = errors.New("address not found")

func (c *Conf) CreateAddress(ctx context.Context, userID string, na NewAddress) (Address, error) {
	query := `
		INSERT INTO addresses (user_id, name, mobile, address, landmark, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	addr := Address{
		UserID:   userID,
		Name:     na.Name,
		Mobile:   na.Mobile,
		Address:  na.Address,
		Landmark: na.Landmark,
		Lat:      na.Lat,
		Lng:      na.Lng,
	}
	err := c.db.QueryRowContext(ctx, query, userID, na.Name, na.Mobile, na.Address, na.Landmark, na.Lat, na.Lng).
		Scan(&addr.ID, &addr.CreatedAt, &addr.UpdatedAt)
	if err != nil {
		return Address{}, fmt.Errorf("inserting address: %w", err)
	}
	return addr, nil
}

func (c *Conf) UpdateAddress(ctx context.Context, userID, addressID string, na NewAddress) (Address, error) {
	query := `
		UPDATE addresses
		SET name = $1, mobile = $2, address = $3, landmark = $4, lat = $5, lng = $6, updated_at = NOW()
		WHERE id = $7 AND user_id = $8
		RETURNING id, user_id, name, mobile, address, COALESCE(landmark, ''), lat, lng, created_at, updated_at
	`
	var addr Address
	err := c.db.QueryRowContext(ctx, query, na.Name, na.Mobile, na.Address, na.Landmark, na.Lat, na.Lng,
		addressID, userID).
		Scan(&addr.ID, &addr.UserID, &addr.Name, &addr.Mobile, &addr.Address, &addr.Landmark,
			&addr.Lat, &addr.Lng, &addr.CreatedAt, &addr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrAddressNotFound
	}
	if err != nil {
		return Address{}, fmt.Errorf("updating address: %w", err)
	}
	return addr, nil
}

func (c *Conf) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	query := `
		SELECT id, user_id, name, mobile, address, COALESCE(landmark, ''), lat, lng, created_at, updated_at
		FROM addresses WHERE user_id = $1 ORDER BY updated_at DESC
	`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying addresses: %w", err)
	}
	defer rows.Close()

	var addresses []Address
	for rows.Next() {
		var addr Address
		if err := rows.Scan(&addr.ID, &addr.UserID, &addr.Name, &addr.Mobile, &addr.Address,
			&addr.Landmark, &addr.Lat, &addr.Lng, &addr.CreatedAt, &addr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning address: %w", err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating addresses: %w", err)
	}
	return addresses, nil
}

// ResolveAddress returns the address only when it belongs to the user.
func (c *Conf) ResolveAddress(ctx context.Context, userID, addressID string) (Address, error) {
	query := `
		SELECT id, user_id, name, mobile, address, COALESCE(landmark, ''), lat, lng, created_at, updated_at
		FROM addresses WHERE id = $1 AND user_id = $2
	`
	var addr Address
	err := c.db.QueryRowContext(ctx, query, addressID, userID).
		Scan(&addr.ID, &addr.UserID, &addr.Name, &addr.Mobile, &addr.Address, &addr.Landmark,
			&addr.Lat, &addr.Lng, &addr.CreatedAt, &addr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrAddressNotFound
	}
	if err != nil {
		return Address{}, fmt.Errorf("querying address: %w", err)
	}
	return addr, nil
}

func (c *Conf) DeleteAddress(ctx context.Context, userID, addressID string) error {
	result, err := c.db.ExecContext(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`, addressID, userID)
	if err != nil {
		return fmt.Errorf("deleting address: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete: %w", err)
	}
	if rows == 0 {
		return ErrAddressNotFound
	}
	return nil
}
