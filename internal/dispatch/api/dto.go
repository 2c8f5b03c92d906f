package api

import (
	"encoding/json"

	"ride-dispatch/internal/dispatch/domain"
)

// Envelope is the inbound websocket frame. Payload stays raw until the
// action is known.
type Envelope struct {
	Action  string          `json:"action"`
	Token   string          `json:"token,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the reply to one inbound action.
type Response struct {
	Type    string      `json:"type"` // "ok" | "error"
	Action  string      `json:"action"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	ActionAuth            = "auth"
	ActionRegisterDriver  = "register-driver"
	ActionBookRide        = "book-ride"
	ActionAcceptRide      = "accept-ride"
	ActionRejectRide      = "reject-ride"
	ActionVerifyAndStart  = "verify-and-start"
	ActionCompleteRide    = "complete-ride"
	ActionCancelRide      = "cancel-ride"
	ActionDriverLocation  = "driver-location"
	ActionRiderLocation   = "rider-location"
	ActionHeartbeat       = "heartbeat"
	ActionUpdatePushToken = "update-push-token"
	ActionNearbyDrivers   = "nearby-drivers"
	ActionRideState       = "ride-state"
	ActionRegisterRider   = "register-rider"
	ActionRetryPush       = "retry-push"
)

type registerDriverReq struct {
	Name         string              `json:"name"`
	VehicleClass domain.VehicleClass `json:"vehicle_class"`
	Location     domain.Point        `json:"location"`
	PushToken    string              `json:"push_token,omitempty"`
}

type bookRideReq struct {
	RiderName    string              `json:"rider_name"`
	RiderContact string              `json:"rider_contact"`
	CustomerID   string              `json:"customer_id"`
	Pickup       domain.Point        `json:"pickup"`
	Drop         domain.Point        `json:"drop"`
	VehicleClass domain.VehicleClass `json:"vehicle_class"`
}

type rideRef struct {
	RideCode string `json:"ride_code"`
}

type verifyStartReq struct {
	RideCode   string `json:"ride_code"`
	VerifyCode string `json:"verification_code"`
}

type completeRideReq struct {
	RideCode     string        `json:"ride_code"`
	ActualKm     float64       `json:"actual_distance_km"`
	ActualFare   float64       `json:"actual_fare"`
	ActualPickup *domain.Point `json:"actual_pickup,omitempty"`
	ActualDrop   *domain.Point `json:"actual_drop,omitempty"`
}

type cancelRideReq struct {
	RideCode string `json:"ride_code"`
	Reason   string `json:"reason,omitempty"`
}

type locationReq struct {
	RideCode string  `json:"ride_code,omitempty"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	// Optional availability change riding along with the packet,
	// "live" or "offline". Drivers only.
	Status string `json:"status,omitempty"`
}

type pushTokenReq struct {
	Token string `json:"token"`
}

type registerRiderReq struct {
	Location domain.Point `json:"location"`
}

type retryPushReq struct {
	RideCode   string `json:"ride_code"`
	RetryCount int    `json:"retry_count"`
}

type nearbyReq struct {
	VehicleClass domain.VehicleClass `json:"vehicle_class"`
	Lat          float64             `json:"lat"`
	Lng          float64             `json:"lng"`
	RadiusKm     float64             `json:"radius_km"`
}

type rideStateResp struct {
	RideCode   string            `json:"ride_code"`
	Status     domain.RideStatus `json:"status"`
	DriverID   string            `json:"driver_id,omitempty"`
	DriverName string            `json:"driver_name,omitempty"`
	Fare       float64           `json:"fare"`
	Pickup     domain.Point      `json:"pickup"`
	Drop       domain.Point      `json:"drop"`
}
