package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/shared/util"
)

func newTestRegistry(grace time.Duration) *Registry {
	return NewRegistry(nil, util.New(), grace, time.Hour)
}

func TestRegisterDriverIdempotent(t *testing.T) {
	r := newTestRegistry(time.Minute)
	ctx := context.Background()

	require.NoError(t, r.RegisterDriver(ctx, "d1", "Aibek", domain.ClassTaxi, domain.Point{Lat: 51.1, Lng: 71.4}, "tok-1"))
	require.NoError(t, r.RegisterDriver(ctx, "d1", "Aibek", domain.ClassTaxi, domain.Point{Lat: 51.2, Lng: 71.5}, ""))

	p, ok := r.Driver("d1")
	require.True(t, ok)
	assert.Equal(t, 51.2, p.Location.Lat)
	assert.Equal(t, "tok-1", p.PushToken, "empty token must not clobber the stored one")
	assert.Len(t, r.ListEligible(domain.ClassTaxi), 1)
}

func TestRegisterDriverRejectsUnknownClass(t *testing.T) {
	r := newTestRegistry(time.Minute)
	err := r.RegisterDriver(context.Background(), "d1", "Aibek", "rickshaw", domain.Point{}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidVehicleClass)
}

func TestLocationPingIsNotRegistration(t *testing.T) {
	r := newTestRegistry(time.Minute)
	r.UpdateDriverLocation(context.Background(), "ghost", domain.Point{Lat: 1, Lng: 1})
	_, ok := r.Driver("ghost")
	assert.False(t, ok)
}

func TestListEligibleFiltersClassAndState(t *testing.T) {
	r := newTestRegistry(time.Minute)
	ctx := context.Background()

	require.NoError(t, r.RegisterDriver(ctx, "taxi-1", "A", domain.ClassTaxi, domain.Point{}, ""))
	require.NoError(t, r.RegisterDriver(ctx, "taxi-2", "B", domain.ClassTaxi, domain.Point{}, ""))
	require.NoError(t, r.RegisterDriver(ctx, "bike-1", "C", domain.ClassBike, domain.Point{}, ""))

	r.MarkOnRide("taxi-2")

	eligible := r.ListEligible(domain.ClassTaxi)
	require.Len(t, eligible, 1)
	assert.Equal(t, "taxi-1", eligible[0].DriverID)
}

func TestOfflineGraceThenEviction(t *testing.T) {
	r := newTestRegistry(30 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, r.RegisterDriver(ctx, "d1", "A", domain.ClassBike, domain.Point{}, ""))
	r.MarkOffline("d1")

	// Inside the grace window the record survives but is not eligible.
	assert.Zero(t, r.Sweep(ctx))
	_, ok := r.Driver("d1")
	assert.True(t, ok)
	assert.Empty(t, r.ListEligible(domain.ClassBike))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, r.Sweep(ctx))
	_, ok = r.Driver("d1")
	assert.False(t, ok)
}

func TestReconnectWithinGraceRestoresState(t *testing.T) {
	r := newTestRegistry(time.Minute)
	ctx := context.Background()

	require.NoError(t, r.RegisterDriver(ctx, "d1", "A", domain.ClassBike, domain.Point{}, "tok"))
	r.MarkOffline("d1")
	require.NoError(t, r.RegisterDriver(ctx, "d1", "A", domain.ClassBike, domain.Point{}, ""))

	p, ok := r.Driver("d1")
	require.True(t, ok)
	assert.Equal(t, domain.DriverLive, p.State)
	assert.Equal(t, "tok", p.PushToken)
}

func TestReleaseReturnsDriverToPool(t *testing.T) {
	r := newTestRegistry(time.Minute)
	ctx := context.Background()

	require.NoError(t, r.RegisterDriver(ctx, "d1", "A", domain.ClassPort, domain.Point{}, ""))
	r.MarkOnRide("d1")
	assert.Empty(t, r.ListEligible(domain.ClassPort))

	r.Release("d1")
	assert.Len(t, r.ListEligible(domain.ClassPort), 1)
}

func TestRiderTraceSweep(t *testing.T) {
	r := NewRegistry(nil, util.New(), time.Minute, 20*time.Millisecond)
	r.TouchRider("rider-1", domain.Point{Lat: 2, Lng: 3})

	loc, ok := r.RiderLocation("rider-1")
	require.True(t, ok)
	assert.Equal(t, 2.0, loc.Lat)

	time.Sleep(40 * time.Millisecond)
	r.Sweep(context.Background())
	_, ok = r.RiderLocation("rider-1")
	assert.False(t, ok)
}

func TestMarkLiveRevivesOfflineDriverOnly(t *testing.T) {
	r := newTestRegistry(time.Minute)
	ctx := context.Background()

	require.NoError(t, r.RegisterDriver(ctx, "d1", "A", domain.ClassTaxi, domain.Point{}, ""))
	r.MarkOffline("d1")
	assert.Empty(t, r.ListEligible(domain.ClassTaxi))

	r.MarkLive("d1")
	assert.Len(t, r.ListEligible(domain.ClassTaxi), 1)

	// A client report cannot pull an on-ride driver back into the pool.
	r.MarkOnRide("d1")
	r.MarkLive("d1")
	p, ok := r.Driver("d1")
	require.True(t, ok)
	assert.Equal(t, domain.DriverOnRide, p.State)
}

// stalledStore blocks every save until released, standing in for a slow
// Redis round trip.
type stalledStore struct {
	release chan struct{}
	saved   chan string
}

func (s *stalledStore) SaveDriver(ctx context.Context, p domain.DriverPresence) error {
	<-s.release
	s.saved <- p.DriverID
	return nil
}

func (s *stalledStore) RemoveDriver(ctx context.Context, driverID string) error { return nil }

func TestLocationUpdateDoesNotWaitOnStore(t *testing.T) {
	st := &stalledStore{release: make(chan struct{}), saved: make(chan string, 4)}
	r := NewRegistry(st, util.New(), time.Minute, time.Hour)
	ctx := context.Background()

	require.NoError(t, r.RegisterDriver(ctx, "d1", "A", domain.ClassTaxi, domain.Point{}, ""))

	done := make(chan struct{})
	go func() {
		r.UpdateDriverLocation(ctx, "d1", domain.Point{Lat: 51.2, Lng: 71.5})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("location update blocked on the durable store")
	}

	// The in-memory view advances before the store write lands.
	p, ok := r.Driver("d1")
	require.True(t, ok)
	assert.Equal(t, 51.2, p.Location.Lat)

	// Once the store unblocks, the write still arrives.
	close(st.release)
	assert.Equal(t, "d1", <-st.saved)
}
