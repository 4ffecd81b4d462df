package proximity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Strategy answers whether one vendor's service radius covers an origin.
// A returned error means this vendor could not be evaluated; the matcher
// isolates it instead of failing the whole scan.
type Strategy interface {
	Covers(ctx context.Context, origin Location, site VendorSite) (bool, error)
}

// Haversine is the default, low-latency strategy: symmetric great-circle
// distance, no external service.
type Haversine struct{}

func (Haversine) Covers(_ context.Context, origin Location, site VendorSite) (bool, error) {
	return HaversineKm(origin.Point, site.Point) <= site.RadiusKm, nil
}

// DistanceMatrix asks an external routing API for travel distance between
// the buyer and vendor addresses. Used when road-distance fidelity matters
// more than latency.
type DistanceMatrix struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewDistanceMatrix(baseURL, apiKey string) *DistanceMatrix {
	return &DistanceMatrix{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type distanceMatrixResponse struct {
	Rows []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"` // meters
			} `json:"distance"`
		} `json:"elements"`
	} `json:"rows"`
}

func (d *DistanceMatrix) Covers(ctx context.Context, origin Location, site VendorSite) (bool, error) {
	if origin.Address == "" || site.Address == "" {
		return false, fmt.Errorf("missing origin or destination address")
	}

	params := url.Values{}
	params.Set("origins", origin.Address)
	params.Set("destinations", site.Address)
	params.Set("key", d.APIKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("calling distance API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("distance API returned %s", resp.Status)
	}

	var body distanceMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decoding distance API response: %w", err)
	}
	if len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		return false, fmt.Errorf("distance API returned no results")
	}

	element := body.Rows[0].Elements[0]
	if element.Status != "OK" {
		return false, fmt.Errorf("distance API element status: %s", element.Status)
	}

	return float64(element.Distance.Value) <= site.RadiusKm*1000, nil
}
