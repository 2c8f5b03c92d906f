package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ride-dispatch/internal/dispatch/broadcast"
	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/dispatch/fare"
	"ride-dispatch/internal/dispatch/ledger"
	"ride-dispatch/internal/dispatch/presence"
	"ride-dispatch/internal/dispatch/push"
	"ride-dispatch/internal/dispatch/router"
	"ride-dispatch/internal/dispatch/sequence"
	"ride-dispatch/internal/shared/util"
)

type fixture struct {
	svc    *Service
	ledger *ledger.Memory
	reg    *presence.Registry
	router *router.Router
	pusher *push.Mock
}

// newFixture wires a full service on in-memory parts. Scheduled re-sends
// are disabled so assertions see exactly the primary deliveries.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := util.New()
	led := ledger.NewMemory()
	reg := presence.NewRegistry(nil, log, time.Minute, time.Hour)
	rt := router.New(log)
	pusher := push.NewMock()
	bc := broadcast.New(rt, pusher, log)

	svc := NewService(led, sequence.NewMemory(100000, 999999), reg, rt, bc, fare.Static{}, nil, log)
	svc.scheduler = func(d time.Duration, f func()) {}
	// Background writes run inline so assertions see them immediately.
	svc.spawn = func(f func()) { f() }

	return &fixture{svc: svc, ledger: led, reg: reg, router: rt, pusher: pusher}
}

type memConn struct {
	ch chan interface{}
}

func newMemConn() *memConn {
	return &memConn{ch: make(chan interface{}, 64)}
}

func (c *memConn) Send(v interface{}) error {
	select {
	case c.ch <- v:
	default:
	}
	return nil
}

func (c *memConn) Close() error { return nil }

func (c *memConn) drain() []domain.Notification {
	var out []domain.Notification
	for {
		select {
		case v := <-c.ch:
			out = append(out, v.(domain.Notification))
		default:
			return out
		}
	}
}

func bookingReq(riderID string) BookingRequest {
	return BookingRequest{
		RiderID:      riderID,
		RiderName:    "Dana",
		RiderContact: "+7 700 000 1122",
		CustomerID:   "cust-774412",
		Pickup:       domain.Point{Address: "Left Bank", Lat: 51.128, Lng: 71.430},
		Drop:         domain.Point{Address: "Airport", Lat: 51.022, Lng: 71.467},
		VehicleClass: domain.ClassTaxi,
	}
}

func (f *fixture) mustBook(t *testing.T, riderID string) *domain.BookingResult {
	t.Helper()
	res, err := f.svc.BookRide(context.Background(), bookingReq(riderID))
	require.NoError(t, err)
	return res
}
