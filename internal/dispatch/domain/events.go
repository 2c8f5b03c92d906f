package domain

import "fmt"

// Outbound notification types. The delivery design is deliberately
// redundant (direct session push plus one scheduled re-send, and for offers
// an additional push-notification channel), so every event carries a stable
// key the receiving client can dedup on.
const (
	EventRideOffer      = "ride-offer"
	EventRideTaken      = "ride-taken"
	EventRideAccepted   = "ride-accepted"
	EventRideStarted    = "ride-started"
	EventRideCompleted  = "ride-completed"
	EventRideCancelled  = "ride-cancelled"
	EventDriverLocation = "driver-location-update"
	EventRiderLocation  = "rider-location-update"
)

// EventKey is the idempotency key for a ride state notification: receivers
// treat a repeated key as a state re-sync, not a new event.
func EventKey(rideCode string, status RideStatus) string {
	return fmt.Sprintf("%s:%s", rideCode, status)
}

// Notification is the envelope written to rider and driver connections.
type Notification struct {
	Type     string      `json:"type"`
	EventKey string      `json:"event_key,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
}

type OfferPayload struct {
	RideCode     string       `json:"ride_code"`
	Pickup       Point        `json:"pickup"`
	Drop         Point        `json:"drop"`
	Fare         float64      `json:"fare"`
	VehicleClass VehicleClass `json:"vehicle_class"`
	RiderName    string       `json:"rider_name"`
	DistanceKm   float64      `json:"distance_km"`
	Retry        int          `json:"retry,omitempty"`
}

type AcceptedPayload struct {
	RideCode       string  `json:"ride_code"`
	DriverID       string  `json:"driver_id"`
	DriverName     string  `json:"driver_name"`
	VerifyCode     string  `json:"verification_code"`
	DriverLocation *Point  `json:"driver_location,omitempty"`
	Fare           float64 `json:"fare"`
}

type StartedPayload struct {
	RideCode string `json:"ride_code"`
}

type CompletedPayload struct {
	RideCode   string  `json:"ride_code"`
	FinalFare  float64 `json:"final_fare"`
	FinalKm    float64 `json:"final_distance_km"`
	DriverName string  `json:"driver_name"`
}

type TakenPayload struct {
	RideCode string `json:"ride_code"`
}

type CancelledPayload struct {
	RideCode string `json:"ride_code"`
	Reason   string `json:"reason"`
}

type LocationPayload struct {
	RideCode string  `json:"ride_code,omitempty"`
	From     string  `json:"from"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Unix     int64   `json:"ts"`
}
