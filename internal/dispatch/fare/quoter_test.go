package fare

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-dispatch/internal/dispatch/domain"
)

func TestStaticRateCard(t *testing.T) {
	var s Static

	fare, err := s.Quote(context.Background(), domain.ClassTaxi, 10)
	require.NoError(t, err)
	assert.Equal(t, 400.0+120*10, fare)

	// Short trips hit the minimum.
	fare, err = s.Quote(context.Background(), domain.ClassTaxi, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 700.0, fare)

	_, err = s.Quote(context.Background(), "rickshaw", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidVehicleClass)
}

func TestHTTPQuoterUsesService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "taxi", r.URL.Query().Get("class"))
		w.Write([]byte(`{"fare": 1850}`))
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	fare, err := h.Quote(context.Background(), domain.ClassTaxi, 12)
	require.NoError(t, err)
	assert.Equal(t, 1850.0, fare)
}

func TestHTTPQuoterFallsBackOnServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	fare, err := h.Quote(context.Background(), domain.ClassBike, 5)
	require.NoError(t, err)
	assert.Equal(t, 200.0+60*5, fare)
}
