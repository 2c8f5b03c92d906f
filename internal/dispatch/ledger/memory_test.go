package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-dispatch/internal/dispatch/domain"
)

func pendingRide(code string) domain.Ride {
	return domain.Ride{
		Code:         code,
		RiderID:      "rider-1",
		RiderName:    "Dana",
		Pickup:       domain.Point{Address: "A", Lat: 51.1, Lng: 71.4},
		Drop:         domain.Point{Address: "B", Lat: 51.0, Lng: 71.5},
		VehicleClass: domain.ClassTaxi,
		Fare:         1500,
		VerifyCode:   "4412",
		CreatedAt:    time.Now(),
	}
}

func TestCreateThenDuplicate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stored, existing, err := m.Create(ctx, pendingRide("RID100001"))
	require.NoError(t, err)
	assert.False(t, existing)
	assert.Equal(t, domain.StatusPending, stored.Status)

	dup := pendingRide("RID100001")
	dup.RiderID = "intruder"
	stored, existing, err = m.Create(ctx, dup)
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, "rider-1", stored.RiderID)
}

func TestAcceptIsFirstWriteWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _, err := m.Create(ctx, pendingRide("RID100001"))
	require.NoError(t, err)

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners int

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := m.Accept(ctx, "RID100001", "driver", "Driver", "9999", time.Now())
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrRideTaken)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestAcceptKeepsExistingVerifyCode(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _, err := m.Create(ctx, pendingRide("RID100001"))
	require.NoError(t, err)

	ride, err := m.Accept(ctx, "RID100001", "d1", "Aibek", "7777", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "4412", ride.VerifyCode, "stored code wins over the spare")
}

func TestAcceptFillsMissingVerifyCode(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	r := pendingRide("RID100002")
	r.VerifyCode = ""
	_, _, err := m.Create(ctx, r)
	require.NoError(t, err)

	ride, err := m.Accept(ctx, "RID100002", "d1", "Aibek", "7777", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "7777", ride.VerifyCode)
}

func TestAcceptUnknownRide(t *testing.T) {
	m := NewMemory()
	_, err := m.Accept(context.Background(), "RID999999", "d1", "A", "1111", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFullLifecycleTimestamps(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _, err := m.Create(ctx, pendingRide("RID100001"))
	require.NoError(t, err)

	_, err = m.Accept(ctx, "RID100001", "d1", "Aibek", "1111", time.Now())
	require.NoError(t, err)

	started, err := m.Start(ctx, "RID100001", "d1", time.Now())
	require.NoError(t, err)
	require.NotNil(t, started.StartedAt)

	done, err := m.Complete(ctx, "RID100001", "d1", domain.CompletionReport{ActualKm: 12, ActualFare: 1900}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, 1900.0, done.ActualFare)
	assert.NotNil(t, done.AcceptedAt)
}

func TestStartClassification(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _, err := m.Create(ctx, pendingRide("RID100001"))
	require.NoError(t, err)

	// Pending ride cannot start.
	_, err = m.Start(ctx, "RID100001", "d1", time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = m.Accept(ctx, "RID100001", "d1", "Aibek", "1111", time.Now())
	require.NoError(t, err)

	// Only the assigned driver may start.
	_, err = m.Start(ctx, "RID100001", "d2", time.Now())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCancelRules(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _, err := m.Create(ctx, pendingRide("RID100001"))
	require.NoError(t, err)

	_, err = m.Cancel(ctx, "RID100001", "rider-2", "", time.Now())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	ride, err := m.Cancel(ctx, "RID100001", "rider-1", "late", time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, ride.Status)

	// Cancelled is absorbing.
	_, err = m.Accept(ctx, "RID100001", "d1", "A", "1111", time.Now())
	assert.ErrorIs(t, err, domain.ErrRideTaken)
}

func TestAuditTrail(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.AppendEvent(ctx, "RID100001", "booked", nil))
	require.NoError(t, m.AppendEvent(ctx, "RID100001", "accepted", map[string]string{"driver_id": "d1"}))

	events := m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "booked", events[0].EventType)
}
