package app

import (
	"context"
	"fmt"

	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/dispatch/fare"
	"ride-dispatch/internal/shared/observability"
	"ride-dispatch/internal/shared/util"
	"ride-dispatch/internal/shared/validation"
)

// BookingRequest is everything the rider supplies to open a ride.
type BookingRequest struct {
	RiderID      string
	RiderName    string
	RiderContact string
	CustomerID   string
	Pickup       domain.Point
	Drop         domain.Point
	VehicleClass domain.VehicleClass
}

func (r BookingRequest) validate() error {
	checks := []error{
		validation.ValidateStringNotEmpty(r.RiderID, "rider id"),
		validation.ValidateStringNotEmpty(r.Pickup.Address, "pickup address"),
		validation.ValidateStringNotEmpty(r.Drop.Address, "drop address"),
		validation.ValidateCoordinates(r.Pickup.Lat, r.Pickup.Lng),
		validation.ValidateCoordinates(r.Drop.Lat, r.Drop.Lng),
	}
	for _, err := range checks {
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}
	if !r.VehicleClass.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidVehicleClass, r.VehicleClass)
	}
	return nil
}

// BookRide validates the request, mints a ride code, records the ride as
// pending and offers it to every eligible driver. Zero eligible drivers is
// still a successful booking: the ride stays pending and can be re-offered.
// A request that lands on an already-stored code returns the stored ride
// unchanged with Existing=true.
func (s *Service) BookRide(ctx context.Context, req BookingRequest) (*domain.BookingResult, error) {
	if err := req.validate(); err != nil {
		observability.BookingRejected.Inc()
		return nil, err
	}

	code, err := s.seq.NextRideCode(ctx)
	if err != nil {
		return nil, err
	}

	if !s.acquire(code) {
		return nil, domain.ErrRideBusy
	}
	defer s.release(code)

	distanceKm := util.Haversine(req.Pickup.Lat, req.Pickup.Lng, req.Drop.Lat, req.Drop.Lng)
	quoted, err := s.quoter.Quote(ctx, req.VehicleClass, distanceKm)
	if err != nil {
		// Rate-card fallback keeps bookings alive while pricing is down.
		s.log.Error("Dispatch", "quote failed for ride "+code+", using rate card", err)
		quoted, err = fare.Static{}.Quote(ctx, req.VehicleClass, distanceKm)
		if err != nil {
			return nil, err
		}
	}

	ride := domain.Ride{
		Code:             code,
		RiderID:          req.RiderID,
		RiderName:        req.RiderName,
		RiderContact:     req.RiderContact,
		CustomerID:       req.CustomerID,
		Pickup:           req.Pickup,
		Drop:             req.Drop,
		VehicleClass:     req.VehicleClass,
		Fare:             quoted,
		EstimatedKm:      distanceKm,
		EstimatedMinutes: int(distanceKm * 2), // 30 km/h city average
		VerifyCode:       util.VerificationCode(req.CustomerID),
		Status:           domain.StatusPending,
		CreatedAt:        s.now(),
	}

	stored, existing, err := s.ledger.Create(ctx, ride)
	if err != nil {
		return nil, err
	}
	if existing {
		s.log.Warn("Dispatch", "booking replayed for existing ride "+code)
		return &domain.BookingResult{
			RideCode:   stored.Code,
			VerifyCode: stored.VerifyCode,
			Fare:       stored.Fare,
			Existing:   true,
		}, nil
	}

	observability.RidesBooked.Inc()
	s.trackRide(code, req.RiderID, "")
	s.ledger.AppendEvent(ctx, code, "booked", map[string]string{"rider_id": req.RiderID})
	s.publish(ctx, "ride.request."+string(req.VehicleClass), stored)

	eligible := s.presence.ListEligible(req.VehicleClass)
	report := s.broadcast.Offer(ctx, stored, eligible, 0)

	// One scheduled re-offer; if the ride settled meanwhile it is skipped.
	s.scheduler(resendDelay, func() {
		current, err := s.ledger.GetByCode(context.Background(), code)
		if err != nil || current.Status != domain.StatusPending {
			return
		}
		s.broadcast.Offer(context.Background(), current, s.presence.ListEligible(current.VehicleClass), 1)
	})

	return &domain.BookingResult{
		RideCode:   stored.Code,
		VerifyCode: stored.VerifyCode,
		Fare:       stored.Fare,
		Delivery:   report,
	}, nil
}
