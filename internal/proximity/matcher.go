package proximity

import (
	"context"
	"log/slog"

	"marketplace-service/pkg/logkey"
)

// Directory supplies the vendor and buyer populations to scan.
type Directory interface {
	ListVendorSites(ctx context.Context) ([]VendorSite, error)
	ListBuyerPoints(ctx context.Context) ([]BuyerPoint, error)
}

// Matcher scans the directory with the configured strategy.
type Matcher struct {
	dir      Directory
	strategy Strategy
}

func NewMatcher(dir Directory, strategy Strategy) *Matcher {
	return &Matcher{dir: dir, strategy: strategy}
}

// FindNearbyVendors returns the ids of vendors whose service radius covers
// the origin. Per-vendor lookup failures exclude that vendor and continue;
// only when every lookup fails does the call itself error.
func (m *Matcher) FindNearbyVendors(ctx context.Context, origin Location) ([]string, error) {
	if !origin.Point.Valid() {
		return nil, ErrInvalidLocation
	}

	sites, err := m.dir.ListVendorSites(ctx)
	if err != nil {
		return nil, err
	}

	var matched []string
	evaluated, failed := 0, 0
	for _, site := range sites {
		if !site.Serviceable() {
			continue
		}
		ok, err := m.strategy.Covers(ctx, origin, site)
		if err != nil {
			failed++
			slog.Error("vendor distance lookup failed, excluding vendor",
				slog.String(logkey.VendorID, site.VendorID), slog.String(logkey.ERROR, err.Error()))
			continue
		}
		evaluated++
		if ok {
			matched = append(matched, site.VendorID)
		}
	}

	if evaluated == 0 && failed > 0 {
		return nil, ErrNoVendorsEvaluated
	}
	return matched, nil
}

// FindNearbyBuyers returns the ids of buyers whose delivery location falls
// inside the vendor's service radius. Used on vendor registration or radius
// change to add the vendor to each qualifying buyer's cached set.
func (m *Matcher) FindNearbyBuyers(ctx context.Context, site VendorSite) ([]string, error) {
	if !site.Serviceable() {
		return nil, ErrInvalidLocation
	}

	buyers, err := m.dir.ListBuyerPoints(ctx)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, buyer := range buyers {
		if !buyer.Point.Valid() {
			continue
		}
		origin := Location{Point: buyer.Point, Address: buyer.Address}
		ok, err := m.strategy.Covers(ctx, origin, site)
		if err != nil {
			slog.Error("buyer distance lookup failed, skipping buyer",
				slog.String(logkey.UserID, buyer.BuyerID), slog.String(logkey.ERROR, err.Error()))
			continue
		}
		if ok {
			matched = append(matched, buyer.BuyerID)
		}
	}
	return matched, nil
}
