package proximity

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	sites  []VendorSite
	buyers []BuyerPoint
}

func (f *fakeDirectory) ListVendorSites(context.Context) ([]VendorSite, error) {
	return f.sites, nil
}

func (f *fakeDirectory) ListBuyerPoints(context.Context) ([]BuyerPoint, error) {
	return f.buyers, nil
}

var (
	bangalore   = Point{Lat: 12.9716, Lng: 77.5946}
	koramangala = Point{Lat: 12.9352, Lng: 77.6245}
)

func TestHaversineKm(t *testing.T) {
	d := HaversineKm(bangalore, koramangala)
	assert.InDelta(t, 5.3, d, 0.3, "distance between the two Bangalore points should be about 5.3 km")

	assert.Zero(t, HaversineKm(bangalore, bangalore))

	// symmetric
	assert.InDelta(t, d, HaversineKm(koramangala, bangalore), 1e-9)
}

func TestFindNearbyVendorsGeodesic(t *testing.T) {
	dir := &fakeDirectory{
		sites: []VendorSite{
			{VendorID: "wide", Point: koramangala, RadiusKm: 10},
			{VendorID: "narrow", Point: koramangala, RadiusKm: 2},
			{VendorID: "no-radius", Point: koramangala},
			{VendorID: "no-location", Point: Point{Lat: math.NaN(), Lng: math.NaN()}, RadiusKm: 10},
		},
	}
	m := NewMatcher(dir, Haversine{})

	got, err := m.FindNearbyVendors(context.Background(), Location{Point: bangalore})
	require.NoError(t, err)
	assert.Equal(t, []string{"wide"}, got)
}

func TestFindNearbyVendorsInvalidLocation(t *testing.T) {
	m := NewMatcher(&fakeDirectory{}, Haversine{})

	_, err := m.FindNearbyVendors(context.Background(), Location{Point: Point{Lat: math.NaN(), Lng: 77.59}})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = m.FindNearbyVendors(context.Background(), Location{Point: Point{Lat: 12.97, Lng: math.Inf(1)}})
	assert.ErrorIs(t, err, ErrInvalidLocation)
}

func TestFindNearbyVendorsIdempotent(t *testing.T) {
	dir := &fakeDirectory{
		sites: []VendorSite{
			{VendorID: "a", Point: koramangala, RadiusKm: 10},
			{VendorID: "b", Point: koramangala, RadiusKm: 8},
		},
	}
	m := NewMatcher(dir, Haversine{})

	first, err := m.FindNearbyVendors(context.Background(), Location{Point: bangalore})
	require.NoError(t, err)
	second, err := m.FindNearbyVendors(context.Background(), Location{Point: bangalore})
	require.NoError(t, err)
	assert.ElementsMatch(t, first, second)
}

func TestFindNearbyBuyers(t *testing.T) {
	dir := &fakeDirectory{
		buyers: []BuyerPoint{
			{BuyerID: "near", Point: bangalore},
			{BuyerID: "far", Point: Point{Lat: 19.0760, Lng: 72.8777}}, // Mumbai
			{BuyerID: "no-coords", Point: Point{Lat: math.NaN(), Lng: math.NaN()}},
		},
	}
	m := NewMatcher(dir, Haversine{})

	got, err := m.FindNearbyBuyers(context.Background(), VendorSite{VendorID: "v", Point: koramangala, RadiusKm: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, got)
}

func TestDistanceMatrixCovers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dest := r.URL.Query().Get("destinations")
		switch dest {
		case "close shop":
			fmt.Fprint(w, `{"rows":[{"elements":[{"status":"OK","distance":{"value":4500}}]}]}`)
		case "distant shop":
			fmt.Fprint(w, `{"rows":[{"elements":[{"status":"OK","distance":{"value":25000}}]}]}`)
		case "unroutable shop":
			fmt.Fprint(w, `{"rows":[{"elements":[{"status":"ZERO_RESULTS"}]}]}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	strategy := NewDistanceMatrix(srv.URL, "test-key")
	origin := Location{Point: bangalore, Address: "buyer address"}

	ok, err := strategy.Covers(context.Background(), origin, VendorSite{Address: "close shop", RadiusKm: 5})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = strategy.Covers(context.Background(), origin, VendorSite{Address: "distant shop", RadiusKm: 5})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = strategy.Covers(context.Background(), origin, VendorSite{Address: "unroutable shop", RadiusKm: 5})
	assert.ErrorContains(t, err, "ZERO_RESULTS")
}

// One vendor lookup failing must exclude only that vendor.
func TestFindNearbyVendorsIsolatesPerVendorFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("destinations") == "broken shop" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"rows":[{"elements":[{"status":"OK","distance":{"value":1000}}]}]}`)
	}))
	defer srv.Close()

	dir := &fakeDirectory{
		sites: []VendorSite{
			{VendorID: "healthy", Address: "healthy shop", Point: koramangala, RadiusKm: 5},
			{VendorID: "broken", Address: "broken shop", Point: koramangala, RadiusKm: 5},
		},
	}
	m := NewMatcher(dir, NewDistanceMatrix(srv.URL, "test-key"))

	got, err := m.FindNearbyVendors(context.Background(), Location{Point: bangalore, Address: "buyer address"})
	require.NoError(t, err)
	assert.Equal(t, []string{"healthy"}, got)
}

// When no vendor at all can be evaluated the batch itself fails.
func TestFindNearbyVendorsAllLookupsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := &fakeDirectory{
		sites: []VendorSite{
			{VendorID: "a", Address: "shop a", Point: koramangala, RadiusKm: 5},
			{VendorID: "b", Address: "shop b", Point: koramangala, RadiusKm: 5},
		},
	}
	m := NewMatcher(dir, NewDistanceMatrix(srv.URL, "test-key"))

	_, err := m.FindNearbyVendors(context.Background(), Location{Point: bangalore, Address: "buyer address"})
	assert.ErrorIs(t, err, ErrNoVendorsEvaluated)
}
