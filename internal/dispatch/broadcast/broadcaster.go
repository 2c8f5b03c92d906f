// Package broadcast fans a new ride offer out to eligible drivers over two
// deliberately redundant channels: the live websocket session and a push
// notification for every driver with a registered token. Clients dedup the
// overlap on the event key. Channel failures are isolated; a booking
// succeeds even when nobody could be reached.
package broadcast

import (
	"context"
	"fmt"
	"sync"

	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/dispatch/router"
	"ride-dispatch/internal/shared/observability"
	"ride-dispatch/internal/shared/util"
)

type Broadcaster struct {
	router *router.Router
	pusher domain.Pusher
	log    *util.Logger

	mu      sync.Mutex
	offered map[string][]string // ride code -> driver ids the offer reached
}

func New(r *router.Router, pusher domain.Pusher, log *util.Logger) *Broadcaster {
	return &Broadcaster{
		router:  r,
		pusher:  pusher,
		log:     log,
		offered: make(map[string][]string),
	}
}

// Offer delivers the ride to every eligible driver and reports how many
// were reachable on each channel. retry > 0 marks a re-send of the same
// offer; the payload carries the attempt so clients can dedup.
func (b *Broadcaster) Offer(ctx context.Context, ride *domain.Ride, eligible []domain.DriverPresence, retry int) domain.DeliveryReport {
	report := domain.DeliveryReport{Eligible: len(eligible)}
	if len(eligible) == 0 {
		b.log.Warn("Broadcast", "no eligible drivers for ride "+ride.Code)
		return report
	}

	payload := domain.OfferPayload{
		RideCode:     ride.Code,
		Pickup:       ride.Pickup,
		Drop:         ride.Drop,
		Fare:         ride.Fare,
		VehicleClass: ride.VehicleClass,
		RiderName:    ride.RiderName,
		DistanceKm:   ride.EstimatedKm,
		Retry:        retry,
	}
	note := domain.Notification{
		Type:     domain.EventRideOffer,
		EventKey: domain.EventKey(ride.Code, domain.StatusPending),
		Payload:  payload,
	}

	// Both channels fire for every driver that has them; a flaky socket
	// must not cost the driver the offer. The shared event key lets
	// clients collapse the duplicate.
	var reached []string
	var pushTokens []string
	for _, d := range eligible {
		delivered := false
		if b.router.SendTo(d.DriverID, note) {
			report.Direct++
			observability.OffersDirect.Inc()
			delivered = true
		}
		if d.PushToken != "" {
			pushTokens = append(pushTokens, d.PushToken)
			delivered = true
		}
		if delivered {
			reached = append(reached, d.DriverID)
		}
	}

	if len(pushTokens) > 0 && b.pusher != nil {
		title := "New ride request"
		body := fmt.Sprintf("%s -> %s, %.0f", ride.Pickup.Address, ride.Drop.Address, ride.Fare)
		pr, err := b.pusher.SendPush(ctx, pushTokens, title, body, map[string]string{
			"type":      domain.EventRideOffer,
			"event_key": domain.EventKey(ride.Code, domain.StatusPending),
			"ride_code": ride.Code,
		})
		if err != nil {
			b.log.Error("Broadcast", "push channel failed for ride "+ride.Code, err)
		} else {
			report.Pushed = pr.SuccessCount
			observability.OffersPush.Add(float64(pr.SuccessCount))
		}
	}

	b.mu.Lock()
	b.offered[ride.Code] = mergeIDs(b.offered[ride.Code], reached)
	b.mu.Unlock()

	return report
}

// RetryPush re-invokes only the push channel for a still-open offer. The
// payload carries the retry count so clients can dedup against the original.
func (b *Broadcaster) RetryPush(ctx context.Context, ride *domain.Ride, eligible []domain.DriverPresence, retryCount int) (int, error) {
	var tokens []string
	var reached []string
	for _, d := range eligible {
		if d.PushToken != "" {
			tokens = append(tokens, d.PushToken)
			reached = append(reached, d.DriverID)
		}
	}
	if len(tokens) == 0 || b.pusher == nil {
		return 0, nil
	}

	pr, err := b.pusher.SendPush(ctx, tokens, "New ride request",
		fmt.Sprintf("%s -> %s, %.0f", ride.Pickup.Address, ride.Drop.Address, ride.Fare),
		map[string]string{
			"type":        domain.EventRideOffer,
			"event_key":   domain.EventKey(ride.Code, domain.StatusPending),
			"ride_code":   ride.Code,
			"is_retry":    "true",
			"retry_count": fmt.Sprintf("%d", retryCount),
		})
	if err != nil {
		return 0, err
	}

	observability.OffersPush.Add(float64(pr.SuccessCount))
	b.mu.Lock()
	b.offered[ride.Code] = mergeIDs(b.offered[ride.Code], reached)
	b.mu.Unlock()
	return pr.SuccessCount, nil
}

// Offered returns the drivers the offer for this ride has reached so far.
func (b *Broadcaster) Offered(rideCode string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.offered[rideCode]))
	copy(out, b.offered[rideCode])
	return out
}

// NotifyTaken tells every offered driver except the winner that the ride is
// gone, then forgets the offer set.
func (b *Broadcaster) NotifyTaken(rideCode, winnerID string) {
	b.mu.Lock()
	ids := b.offered[rideCode]
	delete(b.offered, rideCode)
	b.mu.Unlock()

	note := domain.Notification{
		Type:     domain.EventRideTaken,
		EventKey: domain.EventKey(rideCode, domain.StatusAccepted),
		Payload:  domain.TakenPayload{RideCode: rideCode},
	}
	for _, id := range ids {
		if id == winnerID {
			continue
		}
		b.router.SendTo(id, note)
	}
}

// Forget drops the offer bookkeeping for a ride that ended without an
// acceptance (cancelled while pending).
func (b *Broadcaster) Forget(rideCode string) {
	b.mu.Lock()
	delete(b.offered, rideCode)
	b.mu.Unlock()
}

func mergeIDs(have, add []string) []string {
	seen := make(map[string]struct{}, len(have))
	for _, id := range have {
		seen[id] = struct{}{}
	}
	for _, id := range add {
		if _, ok := seen[id]; !ok {
			have = append(have, id)
			seen[id] = struct{}{}
		}
	}
	return have
}
