// Package fare estimates ride prices. The HTTP quoter asks the pricing
// service; the static rate card serves as the local fallback so a booking
// never fails on pricing being down.
package fare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ride-dispatch/internal/dispatch/domain"
)

type rate struct {
	Base    float64
	PerKm   float64
	Minimum float64
}

var rateCard = map[domain.VehicleClass]rate{
	domain.ClassBike: {Base: 200, PerKm: 60, Minimum: 400},
	domain.ClassTaxi: {Base: 400, PerKm: 120, Minimum: 700},
	domain.ClassPort: {Base: 800, PerKm: 200, Minimum: 1500},
}

// Static quotes from the built-in rate card.
type Static struct{}

func (Static) Quote(ctx context.Context, class domain.VehicleClass, distanceKm float64) (float64, error) {
	r, ok := rateCard[class]
	if !ok {
		return 0, domain.ErrInvalidVehicleClass
	}
	fare := r.Base + r.PerKm*distanceKm
	if fare < r.Minimum {
		fare = r.Minimum
	}
	return fare, nil
}

// HTTP asks the external pricing service and falls back to the rate card on
// any failure.
type HTTP struct {
	baseURL  string
	client   *http.Client
	fallback Static
}

func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (h *HTTP) Quote(ctx context.Context, class domain.VehicleClass, distanceKm float64) (float64, error) {
	fare, err := h.remote(ctx, class, distanceKm)
	if err != nil {
		return h.fallback.Quote(ctx, class, distanceKm)
	}
	return fare, nil
}

func (h *HTTP) remote(ctx context.Context, class domain.VehicleClass, distanceKm float64) (float64, error) {
	q := url.Values{}
	q.Set("class", string(class))
	q.Set("distance_km", strconv.FormatFloat(distanceKm, 'f', 2, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pricing service returned %d", resp.StatusCode)
	}

	var body struct {
		Fare float64 `json:"fare"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	if body.Fare <= 0 {
		return 0, fmt.Errorf("pricing service returned non-positive fare %f", body.Fare)
	}
	return body.Fare, nil
}
