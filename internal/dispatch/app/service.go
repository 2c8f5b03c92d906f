// Package app is the coordinator's application layer: it ties the ledger,
// presence registry, router and broadcaster together and owns every ride
// lifecycle operation.
package app

import (
	"context"
	"sync"
	"time"

	"ride-dispatch/internal/dispatch/broadcast"
	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/dispatch/presence"
	"ride-dispatch/internal/dispatch/router"
	"ride-dispatch/internal/shared/util"
)

const (
	resendDelay      = 5 * time.Second
	purgeAfterFinish = 30 * time.Second
)

// activeRide is the in-memory working set entry for a ride between booking
// and shortly after completion. It exists so location relays resolve
// counterparties without a ledger read per packet.
type activeRide struct {
	riderID  string
	driverID string
}

type Service struct {
	ledger    domain.Ledger
	seq       domain.Sequence
	presence  *presence.Registry
	router    *router.Router
	broadcast *broadcast.Broadcaster
	quoter    domain.Quoter
	events    domain.EventPublisher // nil when the broker is not wired
	log       *util.Logger

	mu         sync.Mutex
	inflight   map[string]struct{} // ride codes with an operation in progress
	active     map[string]*activeRide
	driverRide map[string]string // driver id -> active ride code

	// test seams
	now       func() time.Time
	scheduler func(d time.Duration, f func())
	spawn     func(f func())
}

func NewService(
	ledger domain.Ledger,
	seq domain.Sequence,
	reg *presence.Registry,
	rt *router.Router,
	bc *broadcast.Broadcaster,
	quoter domain.Quoter,
	events domain.EventPublisher,
	log *util.Logger,
) *Service {
	s := &Service{
		ledger:     ledger,
		seq:        seq,
		presence:   reg,
		router:     rt,
		broadcast:  bc,
		quoter:     quoter,
		events:     events,
		log:        log,
		inflight:   make(map[string]struct{}),
		active:     make(map[string]*activeRide),
		driverRide: make(map[string]string),
		now:        time.Now,
		scheduler: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		spawn: func(f func()) { go f() },
	}
	rt.OnDriverGone = s.driverDisconnected
	return s
}

// acquire claims the per-ride processing guard. The guard only sheds
// redundant work on one instance; correctness comes from the ledger's
// conditional updates.
func (s *Service) acquire(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[code]; busy {
		return false
	}
	s.inflight[code] = struct{}{}
	return true
}

func (s *Service) release(code string) {
	s.mu.Lock()
	delete(s.inflight, code)
	s.mu.Unlock()
}

func (s *Service) trackRide(code, riderID, driverID string) {
	s.mu.Lock()
	a, ok := s.active[code]
	if !ok {
		a = &activeRide{}
		s.active[code] = a
	}
	if riderID != "" {
		a.riderID = riderID
	}
	if driverID != "" {
		a.driverID = driverID
		s.driverRide[driverID] = code
	}
	s.mu.Unlock()
}

// driverBusy reports whether the driver is mid-ride, either by presence
// state or by the working-set assignment.
func (s *Service) driverBusy(driverID string) bool {
	if p, ok := s.presence.Driver(driverID); ok && p.State == domain.DriverOnRide {
		return true
	}
	s.mu.Lock()
	_, busy := s.driverRide[driverID]
	s.mu.Unlock()
	return busy
}

// clearDriver drops the driver's assignment for a settled ride so the
// driver can win a new one right away. The ride's working-set entry stays
// until purge so trailing location packets still resolve.
func (s *Service) clearDriver(code string) {
	s.mu.Lock()
	if a, ok := s.active[code]; ok && a.driverID != "" && s.driverRide[a.driverID] == code {
		delete(s.driverRide, a.driverID)
	}
	s.mu.Unlock()
}

func (s *Service) rideParties(code string) (riderID, driverID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, found := s.active[code]
	if !found {
		return "", "", false
	}
	return a.riderID, a.driverID, true
}

// purgeRide removes the working-set entry after a grace window so trailing
// location packets still resolve, then stop.
func (s *Service) purgeRide(code string) {
	s.scheduler(purgeAfterFinish, func() {
		s.mu.Lock()
		if a, ok := s.active[code]; ok {
			if a.driverID != "" && s.driverRide[a.driverID] == code {
				delete(s.driverRide, a.driverID)
			}
			delete(s.active, code)
		}
		s.mu.Unlock()
	})
}

func (s *Service) driverDisconnected(driverID string) {
	s.presence.MarkOffline(driverID)
	s.log.Info("Dispatch", "driver "+driverID+" disconnected, grace window started")
}

// notify writes a ride event to every connection of the identity, then
// re-sends once after a short delay. The event key is stable across both
// sends, so clients treat the second as a state re-sync.
func (s *Service) notify(id string, note domain.Notification) {
	s.router.SendTo(id, note)
	s.scheduler(resendDelay, func() {
		s.router.SendTo(id, note)
	})
}

// publish is the best-effort broker fan-out; failures degrade to a log line.
func (s *Service) publish(ctx context.Context, routingKey string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, routingKey, payload); err != nil {
		s.log.Error("Dispatch", "broker publish failed on "+routingKey, err)
	}
}

// RegisterDriver joins a driver into the presence pool.
func (s *Service) RegisterDriver(ctx context.Context, driverID, name string, class domain.VehicleClass, loc domain.Point, pushToken string) error {
	return s.presence.RegisterDriver(ctx, driverID, name, class, loc, pushToken)
}

// RegisterRider records the rider's starting position as a trace.
func (s *Service) RegisterRider(riderID string, loc domain.Point) {
	s.presence.TouchRider(riderID, loc)
}

// RetryPush re-sends a still-pending offer over the push channel only.
func (s *Service) RetryPush(ctx context.Context, rideCode string, retryCount int) (int, error) {
	ride, err := s.ledger.GetByCode(ctx, rideCode)
	if err != nil {
		return 0, err
	}
	if ride.Status != domain.StatusPending {
		return 0, domain.ErrInvalidStatus
	}
	return s.broadcast.RetryPush(ctx, ride, s.presence.ListEligible(ride.VehicleClass), retryCount)
}

func (s *Service) Heartbeat(driverID string) {
	s.presence.Heartbeat(driverID)
}

// SetDriverState applies a driver-reported availability change, typically
// carried alongside a location packet. Only live and offline are honored;
// on-ride is owned by the ride lifecycle.
func (s *Service) SetDriverState(driverID string, state domain.DriverState) {
	switch state {
	case domain.DriverOffline:
		s.presence.MarkOffline(driverID)
	case domain.DriverLive:
		s.presence.MarkLive(driverID)
	}
}

func (s *Service) UpdatePushToken(driverID, token string) {
	s.presence.UpdatePushToken(driverID, token)
}

// NearbyDrivers lists live drivers of a class within radiusKm of a point.
func (s *Service) NearbyDrivers(class domain.VehicleClass, at domain.Point, radiusKm float64) []domain.DriverPresence {
	var out []domain.DriverPresence
	for _, d := range s.presence.ListEligible(class) {
		if util.Haversine(at.Lat, at.Lng, d.Location.Lat, d.Location.Lng) <= radiusKm {
			out = append(out, d)
		}
	}
	return out
}
