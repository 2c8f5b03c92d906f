// Package presence tracks which drivers are reachable right now and where
// they are. The registry is authoritative and purely in-memory; the optional
// store mirrors driver positions out to Redis on a fire-and-forget basis for
// other services to read.
package presence

import (
	"context"
	"sync"
	"time"

	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/shared/util"
)

// Store mirrors presence data to an external keyspace. Calls are
// fire-and-forget: errors are logged by the registry, never surfaced.
type Store interface {
	SaveDriver(ctx context.Context, p domain.DriverPresence) error
	RemoveDriver(ctx context.Context, driverID string) error
}

type riderTrace struct {
	location domain.Point
	lastSeen time.Time
}

// Registry holds live driver and rider presence. A driver marked offline is
// kept for a grace window so a quick reconnect restores state instead of
// re-registering from scratch.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]*domain.DriverPresence
	riders  map[string]*riderTrace

	store          Store
	log            *util.Logger
	offlineGrace   time.Duration
	traceStaleness time.Duration
}

func NewRegistry(store Store, log *util.Logger, offlineGrace, traceStaleness time.Duration) *Registry {
	return &Registry{
		drivers:        make(map[string]*domain.DriverPresence),
		riders:         make(map[string]*riderTrace),
		store:          store,
		log:            log,
		offlineGrace:   offlineGrace,
		traceStaleness: traceStaleness,
	}
}

// RegisterDriver is idempotent: re-registration refreshes the record and
// clears any offline mark, preserving on-ride state across reconnects.
func (r *Registry) RegisterDriver(ctx context.Context, driverID, name string, class domain.VehicleClass, loc domain.Point, pushToken string) error {
	if !class.Valid() {
		return domain.ErrInvalidVehicleClass
	}

	r.mu.Lock()
	p, ok := r.drivers[driverID]
	if !ok {
		p = &domain.DriverPresence{DriverID: driverID, State: domain.DriverLive}
		r.drivers[driverID] = p
	}
	p.Name = name
	p.VehicleClass = class
	p.Location = loc
	p.LastSeen = time.Now()
	if pushToken != "" {
		p.PushToken = pushToken
	}
	if p.State == domain.DriverOffline {
		p.State = domain.DriverLive
	}
	snapshot := *p
	r.mu.Unlock()

	r.persist(snapshot)
	return nil
}

// UpdateDriverLocation is a no-op for unknown drivers: a location ping is
// not a registration.
func (r *Registry) UpdateDriverLocation(ctx context.Context, driverID string, loc domain.Point) {
	r.mu.Lock()
	p, ok := r.drivers[driverID]
	if !ok {
		r.mu.Unlock()
		return
	}
	p.Location = loc
	p.LastSeen = time.Now()
	snapshot := *p
	r.mu.Unlock()

	r.persist(snapshot)
}

func (r *Registry) Heartbeat(driverID string) {
	r.mu.Lock()
	if p, ok := r.drivers[driverID]; ok {
		p.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

// MarkOffline flags the driver for eviction after the grace window. The
// record survives until the sweeper removes it.
func (r *Registry) MarkOffline(driverID string) {
	r.mu.Lock()
	if p, ok := r.drivers[driverID]; ok {
		p.State = domain.DriverOffline
		p.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

// MarkOnRide removes the driver from the eligible pool while it carries a
// ride.
func (r *Registry) MarkOnRide(driverID string) {
	r.mu.Lock()
	if p, ok := r.drivers[driverID]; ok {
		p.State = domain.DriverOnRide
	}
	r.mu.Unlock()
}

// MarkLive returns an offline driver to the eligible pool without a full
// re-registration. On-ride drivers stay on-ride; that state is owned by the
// ride lifecycle, not by client reports.
func (r *Registry) MarkLive(driverID string) {
	r.mu.Lock()
	if p, ok := r.drivers[driverID]; ok && p.State == domain.DriverOffline {
		p.State = domain.DriverLive
		p.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

// Release returns an on-ride driver to the live pool.
func (r *Registry) Release(driverID string) {
	r.mu.Lock()
	if p, ok := r.drivers[driverID]; ok && p.State == domain.DriverOnRide {
		p.State = domain.DriverLive
		p.LastSeen = time.Now()
	}
	r.mu.Unlock()
}

func (r *Registry) UpdatePushToken(driverID, token string) {
	r.mu.Lock()
	if p, ok := r.drivers[driverID]; ok {
		p.PushToken = token
	}
	r.mu.Unlock()
}

func (r *Registry) Driver(driverID string) (domain.DriverPresence, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.drivers[driverID]
	if !ok {
		return domain.DriverPresence{}, false
	}
	return *p, true
}

// ListEligible returns live drivers of the given class. Offline drivers
// inside their grace window are excluded: grace preserves state, not
// eligibility.
func (r *Registry) ListEligible(class domain.VehicleClass) []domain.DriverPresence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.DriverPresence
	for _, p := range r.drivers {
		if p.State == domain.DriverLive && p.VehicleClass == class {
			out = append(out, *p)
		}
	}
	return out
}

// TouchRider records a rider position trace.
func (r *Registry) TouchRider(riderID string, loc domain.Point) {
	r.mu.Lock()
	r.riders[riderID] = &riderTrace{location: loc, lastSeen: time.Now()}
	r.mu.Unlock()
}

func (r *Registry) RiderLocation(riderID string) (domain.Point, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.riders[riderID]
	if !ok {
		return domain.Point{}, false
	}
	return t.location, true
}

// Sweep evicts drivers whose offline mark outlived the grace window and
// rider traces past the staleness horizon. Returned count is evicted
// drivers.
func (r *Registry) Sweep(ctx context.Context) int {
	now := time.Now()
	var evicted []string

	r.mu.Lock()
	for id, p := range r.drivers {
		if p.State == domain.DriverOffline && now.Sub(p.LastSeen) > r.offlineGrace {
			delete(r.drivers, id)
			evicted = append(evicted, id)
		}
	}
	for id, t := range r.riders {
		if now.Sub(t.lastSeen) > r.traceStaleness {
			delete(r.riders, id)
		}
	}
	r.mu.Unlock()

	for _, id := range evicted {
		if r.store != nil {
			if err := r.store.RemoveDriver(ctx, id); err != nil {
				r.log.Error("Presence", "failed to remove driver from store", err)
			}
		}
		r.log.Info("Presence", "evicted offline driver "+id)
	}
	return len(evicted)
}

// RunSweeper loops Sweep on the given interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// persist mirrors the snapshot to the durable store off the caller's
// goroutine. Location updates arrive on websocket read loops and must not
// wait on store round trips; a lost write is repaired by the next packet.
func (r *Registry) persist(p domain.DriverPresence) {
	if r.store == nil {
		return
	}
	go func() {
		if err := r.store.SaveDriver(context.Background(), p); err != nil {
			r.log.Error("Presence", "failed to persist driver "+p.DriverID, err)
		}
	}()
}
