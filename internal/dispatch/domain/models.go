package domain

import "time"

// RideStatus is the ledger lifecycle state. Transitions are monotonic:
// pending -> accepted -> started -> completed, with pending -> rejected and
// pending/accepted -> cancelled as absorbing alternates.
type RideStatus string

const (
	StatusPending   RideStatus = "pending"
	StatusAccepted  RideStatus = "accepted"
	StatusStarted   RideStatus = "started"
	StatusCompleted RideStatus = "completed"
	StatusRejected  RideStatus = "rejected"
	StatusCancelled RideStatus = "cancelled"
)

// VehicleClass is the closed set of classes a ride can request. Validated
// once at the booking boundary; everything downstream trusts it.
type VehicleClass string

const (
	ClassBike VehicleClass = "bike"
	ClassTaxi VehicleClass = "taxi"
	ClassPort VehicleClass = "port"
)

func (c VehicleClass) Valid() bool {
	switch c {
	case ClassBike, ClassTaxi, ClassPort:
		return true
	}
	return false
}

// DriverState is the availability state held by the presence registry.
type DriverState string

const (
	DriverLive    DriverState = "live"
	DriverOnRide  DriverState = "on-ride"
	DriverOffline DriverState = "offline"
)

type Point struct {
	Address string  `json:"addr"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Ride is the ledger record; the durable source of truth for ownership.
type Ride struct {
	Code             string
	RiderID          string
	RiderName        string
	RiderContact     string
	CustomerID       string
	Pickup           Point
	Drop             Point
	VehicleClass     VehicleClass
	Fare             float64
	EstimatedKm      float64
	EstimatedMinutes int
	VerifyCode       string
	Status           RideStatus
	DriverID         string // empty until accepted
	DriverName       string
	ActualKm         float64
	ActualFare       float64
	ActualPickup     *Point
	ActualDrop       *Point
	CreatedAt        time.Time
	AcceptedAt       *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	CancelReason     string
}

// DriverPresence is the in-memory presence record for one driver.
type DriverPresence struct {
	DriverID     string
	Name         string
	Location     Point
	VehicleClass VehicleClass
	State        DriverState
	PushToken    string
	LastSeen     time.Time
}

// CompletionReport carries the driver-reported actuals at ride end.
type CompletionReport struct {
	ActualKm     float64
	ActualFare   float64
	ActualPickup *Point
	ActualDrop   *Point
}

// DeliveryReport is the observable outcome of one offer broadcast.
type DeliveryReport struct {
	Eligible int `json:"eligible"`
	Direct   int `json:"direct"`
	Pushed   int `json:"pushed"`
}

// AcceptResult is returned to the winning driver.
type AcceptResult struct {
	RideCode     string  `json:"ride_code"`
	VerifyCode   string  `json:"verification_code"`
	Pickup       Point   `json:"pickup"`
	Drop         Point   `json:"drop"`
	Fare         float64 `json:"fare"`
	RiderName    string  `json:"rider_name"`
	RiderContact string  `json:"rider_contact"`
}

// BookingResult is returned to the rider after a booking settles.
type BookingResult struct {
	RideCode   string         `json:"ride_code"`
	VerifyCode string         `json:"verification_code"`
	Fare       float64        `json:"fare"`
	Existing   bool           `json:"existing"`
	Delivery   DeliveryReport `json:"delivery"`
}
