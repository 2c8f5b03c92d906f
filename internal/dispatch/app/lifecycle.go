package app

import (
	"context"
	"fmt"

	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/shared/observability"
)

// VerifyAndStart checks the rider's verification code and flips the ride to
// started. A wrong code is Forbidden; a wrong state or wrong driver is
// classified by the ledger.
func (s *Service) VerifyAndStart(ctx context.Context, rideCode, driverID, verifyCode string) (*domain.Ride, error) {
	current, err := s.ledger.GetByCode(ctx, rideCode)
	if err != nil {
		return nil, err
	}
	if current.VerifyCode != verifyCode {
		return nil, fmt.Errorf("%w: verification code mismatch", domain.ErrForbidden)
	}

	ride, err := s.ledger.Start(ctx, rideCode, driverID, s.now())
	if err != nil {
		return nil, err
	}

	s.ledger.AppendEvent(ctx, rideCode, "started", map[string]string{"driver_id": driverID})
	s.notify(ride.RiderID, domain.Notification{
		Type:     domain.EventRideStarted,
		EventKey: domain.EventKey(rideCode, domain.StatusStarted),
		Payload:  domain.StartedPayload{RideCode: rideCode},
	})
	s.publish(ctx, "ride.started", ride)
	return ride, nil
}

// CompleteRide closes the ride with the driver's reported actuals, releases
// the driver back to the live pool and notifies billing via the broker. A
// second completion is a Conflict, not an idempotent success: the actuals
// must be written exactly once.
func (s *Service) CompleteRide(ctx context.Context, rideCode, driverID string, report domain.CompletionReport) (*domain.Ride, error) {
	ride, err := s.ledger.Complete(ctx, rideCode, driverID, report, s.now())
	if err != nil {
		return nil, err
	}

	observability.RidesCompleted.Inc()
	s.presence.Release(driverID)
	s.clearDriver(rideCode)
	s.ledger.AppendEvent(ctx, rideCode, "completed", report)

	s.notify(ride.RiderID, domain.Notification{
		Type:     domain.EventRideCompleted,
		EventKey: domain.EventKey(rideCode, domain.StatusCompleted),
		Payload: domain.CompletedPayload{
			RideCode:   rideCode,
			FinalFare:  ride.ActualFare,
			FinalKm:    ride.ActualKm,
			DriverName: ride.DriverName,
		},
	})
	s.publish(ctx, "ride.completed", ride)
	s.purgeRide(rideCode)
	return ride, nil
}

// CancelRide lets the owning rider withdraw a pending or accepted ride. If
// a driver already won the acceptance race, it is told the ride is gone and
// returned to the pool.
func (s *Service) CancelRide(ctx context.Context, rideCode, riderID, reason string) (*domain.Ride, error) {
	ride, err := s.ledger.Cancel(ctx, rideCode, riderID, reason, s.now())
	if err != nil {
		return nil, err
	}

	s.ledger.AppendEvent(ctx, rideCode, "cancelled", map[string]string{"reason": reason})
	note := domain.Notification{
		Type:     domain.EventRideCancelled,
		EventKey: domain.EventKey(rideCode, domain.StatusCancelled),
		Payload:  domain.CancelledPayload{RideCode: rideCode, Reason: reason},
	}
	if ride.DriverID != "" {
		s.notify(ride.DriverID, note)
		s.presence.Release(ride.DriverID)
		s.clearDriver(rideCode)
	}
	s.broadcast.Forget(rideCode)
	s.publish(ctx, "ride.cancelled", ride)
	s.purgeRide(rideCode)
	return ride, nil
}

// RelayDriverLocation forwards a driver position to the rider of its active
// ride and refreshes presence. Packets apply in receipt order; a late packet
// overwriting a newer one is tolerated.
func (s *Service) RelayDriverLocation(ctx context.Context, driverID string, loc domain.Point) {
	s.presence.UpdateDriverLocation(ctx, driverID, loc)

	s.mu.Lock()
	code, onRide := s.driverRide[driverID]
	s.mu.Unlock()
	if !onRide {
		return
	}
	riderID, _, ok := s.rideParties(code)
	if !ok || riderID == "" {
		return
	}
	payload := domain.LocationPayload{
		RideCode: code,
		From:     driverID,
		Lat:      loc.Lat,
		Lng:      loc.Lng,
		Unix:     s.now().Unix(),
	}
	s.router.SendTo(riderID, domain.Notification{
		Type:    domain.EventDriverLocation,
		Payload: payload,
	})
	// Location history goes into the audit trail off the packet path. A
	// dropped entry costs a gap in the trace, not a stalled relay.
	s.spawn(func() {
		if err := s.ledger.AppendEvent(context.Background(), code, domain.EventDriverLocation, payload); err != nil {
			s.log.Warn("Dispatch", "location history write failed for "+code)
		}
	})
}

// RelayRiderLocation records the rider trace and forwards it to the
// assigned driver when the ride is active.
func (s *Service) RelayRiderLocation(ctx context.Context, riderID, rideCode string, loc domain.Point) {
	s.presence.TouchRider(riderID, loc)
	if rideCode == "" {
		return
	}
	_, driverID, ok := s.rideParties(rideCode)
	if !ok || driverID == "" {
		return
	}
	s.router.SendTo(driverID, domain.Notification{
		Type: domain.EventRiderLocation,
		Payload: domain.LocationPayload{
			RideCode: rideCode,
			From:     riderID,
			Lat:      loc.Lat,
			Lng:      loc.Lng,
			Unix:     s.now().Unix(),
		},
	})
}

// RideState returns the current ledger record, for clients resyncing after
// a reconnect.
func (s *Service) RideState(ctx context.Context, rideCode string) (*domain.Ride, error) {
	return s.ledger.GetByCode(ctx, rideCode)
}
