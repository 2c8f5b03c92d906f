package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/dispatch/push"
	"ride-dispatch/internal/dispatch/router"
	"ride-dispatch/internal/shared/util"
)

type recordingConn struct {
	sent []interface{}
}

func (c *recordingConn) Send(v interface{}) error {
	c.sent = append(c.sent, v)
	return nil
}

func (c *recordingConn) Close() error { return nil }

func testRide() *domain.Ride {
	return &domain.Ride{
		Code:         "RID100001",
		RiderName:    "Dana",
		Pickup:       domain.Point{Address: "Left Bank", Lat: 51.12, Lng: 71.43},
		Drop:         domain.Point{Address: "Airport", Lat: 51.02, Lng: 71.47},
		VehicleClass: domain.ClassTaxi,
		Fare:         2400,
		Status:       domain.StatusPending,
	}
}

func TestOfferFiresBothChannels(t *testing.T) {
	r := router.New(util.New())
	conn := &recordingConn{}
	r.Join("d1", router.RoleDriver, conn)

	pusher := push.NewMock()
	b := New(r, pusher, util.New())

	eligible := []domain.DriverPresence{
		{DriverID: "d1", PushToken: "tok-1"},
		{DriverID: "d2", PushToken: "tok-2"},
	}
	report := b.Offer(context.Background(), testRide(), eligible, 0)

	assert.Equal(t, 2, report.Eligible)
	assert.Equal(t, 1, report.Direct)
	assert.Equal(t, 2, report.Pushed)

	// The connected driver gets the push too; its client dedups on the
	// event key.
	require.Len(t, pusher.Calls(), 1)
	assert.Equal(t, []string{"tok-1", "tok-2"}, pusher.Calls()[0].Tokens)
	assert.Equal(t, "RID100001:pending", pusher.Calls()[0].Data["event_key"])
	require.Len(t, conn.sent, 1)
	note := conn.sent[0].(domain.Notification)
	assert.Equal(t, domain.EventRideOffer, note.Type)
	assert.Equal(t, "RID100001:pending", note.EventKey)
}

func TestOfferZeroEligible(t *testing.T) {
	b := New(router.New(util.New()), push.NewMock(), util.New())
	report := b.Offer(context.Background(), testRide(), nil, 0)
	assert.Equal(t, domain.DeliveryReport{}, report)
}

func TestPushFailureDoesNotFailOffer(t *testing.T) {
	pusher := push.NewMock()
	pusher.Err = errors.New("fcm unavailable")
	b := New(router.New(util.New()), pusher, util.New())

	eligible := []domain.DriverPresence{{DriverID: "d1", PushToken: "tok-1"}}
	report := b.Offer(context.Background(), testRide(), eligible, 0)

	assert.Equal(t, 1, report.Eligible)
	assert.Zero(t, report.Direct)
	assert.Zero(t, report.Pushed)
}

func TestRetryPushOnlyUsesPushChannel(t *testing.T) {
	r := router.New(util.New())
	conn := &recordingConn{}
	r.Join("d1", router.RoleDriver, conn)

	pusher := push.NewMock()
	b := New(r, pusher, util.New())

	eligible := []domain.DriverPresence{
		{DriverID: "d1", PushToken: "tok-1"},
		{DriverID: "d2", PushToken: "tok-2"},
	}
	pushed, err := b.RetryPush(context.Background(), testRide(), eligible, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, pushed, "retry pushes every token, connected or not")
	assert.Empty(t, conn.sent, "retry never touches the session channel")

	calls := pusher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "true", calls[0].Data["is_retry"])
	assert.Equal(t, "2", calls[0].Data["retry_count"])
}

func TestNotifyTakenSkipsWinner(t *testing.T) {
	r := router.New(util.New())
	winner, loser := &recordingConn{}, &recordingConn{}
	r.Join("d1", router.RoleDriver, winner)
	r.Join("d2", router.RoleDriver, loser)

	b := New(r, push.NewMock(), util.New())
	eligible := []domain.DriverPresence{{DriverID: "d1"}, {DriverID: "d2"}}
	b.Offer(context.Background(), testRide(), eligible, 0)

	b.NotifyTaken("RID100001", "d1")

	require.Len(t, winner.sent, 1, "winner only saw the original offer")
	require.Len(t, loser.sent, 2)
	note := loser.sent[1].(domain.Notification)
	assert.Equal(t, domain.EventRideTaken, note.Type)

	// Offer set is forgotten after the fan-out.
	assert.Empty(t, b.Offered("RID100001"))
}

func TestRetryOfferDedupsOfferedSet(t *testing.T) {
	r := router.New(util.New())
	conn := &recordingConn{}
	r.Join("d1", router.RoleDriver, conn)

	b := New(r, push.NewMock(), util.New())
	eligible := []domain.DriverPresence{{DriverID: "d1"}}
	b.Offer(context.Background(), testRide(), eligible, 0)
	b.Offer(context.Background(), testRide(), eligible, 1)

	assert.Equal(t, []string{"d1"}, b.Offered("RID100001"))
	require.Len(t, conn.sent, 2)
	second := conn.sent[1].(domain.Notification).Payload.(domain.OfferPayload)
	assert.Equal(t, 1, second.Retry)
}
