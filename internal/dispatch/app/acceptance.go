package app

import (
	"context"
	"errors"
	"fmt"

	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/shared/observability"
	"ride-dispatch/internal/shared/util"
)

// AttemptAccept races the driver against every other claimant. The ledger's
// conditional update is the arbiter: exactly one attempt flips pending to
// accepted, every other attempt gets ErrRideTaken.
func (s *Service) AttemptAccept(ctx context.Context, rideCode, driverID string) (*domain.AcceptResult, error) {
	if !s.acquire(rideCode) {
		// Another attempt is mid-flight on this instance; its outcome will
		// be a settled ride either way.
		observability.AcceptConflicts.Inc()
		return nil, domain.ErrRideTaken
	}
	defer s.release(rideCode)

	// A driver carries at most one ride at a time.
	if s.driverBusy(driverID) {
		return nil, fmt.Errorf("%w: driver %s already carries a ride", domain.ErrInvalidStatus, driverID)
	}

	driverName := driverID
	var driverLoc *domain.Point
	if p, ok := s.presence.Driver(driverID); ok {
		driverName = p.Name
		loc := p.Location
		driverLoc = &loc
	}

	// Spare code covers a ride stored without one; the ledger keeps the
	// original when it exists.
	spare := util.VerificationCode("")

	ride, err := s.ledger.Accept(ctx, rideCode, driverID, driverName, spare, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrRideTaken) {
			observability.AcceptConflicts.Inc()
		}
		return nil, err
	}

	observability.AcceptWins.Inc()
	s.presence.MarkOnRide(driverID)
	s.trackRide(rideCode, ride.RiderID, driverID)
	s.ledger.AppendEvent(ctx, rideCode, "accepted", map[string]string{"driver_id": driverID})

	s.notify(ride.RiderID, domain.Notification{
		Type:     domain.EventRideAccepted,
		EventKey: domain.EventKey(rideCode, domain.StatusAccepted),
		Payload: domain.AcceptedPayload{
			RideCode:       rideCode,
			DriverID:       driverID,
			DriverName:     driverName,
			VerifyCode:     ride.VerifyCode,
			DriverLocation: driverLoc,
			Fare:           ride.Fare,
		},
	})
	s.broadcast.NotifyTaken(rideCode, driverID)
	s.publish(ctx, "ride.accepted", ride)

	return &domain.AcceptResult{
		RideCode:     rideCode,
		VerifyCode:   ride.VerifyCode,
		Pickup:       ride.Pickup,
		Drop:         ride.Drop,
		Fare:         ride.Fare,
		RiderName:    ride.RiderName,
		RiderContact: ride.RiderContact,
	}, nil
}

// DeclineOffer returns the driver to the pool without touching the ride:
// the offer stays open for everyone else.
func (s *Service) DeclineOffer(ctx context.Context, rideCode, driverID string) {
	s.ledger.AppendEvent(ctx, rideCode, "declined", map[string]string{"driver_id": driverID})
	s.presence.Release(driverID)
}
