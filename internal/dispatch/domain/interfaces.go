package domain

import (
	"context"
	"time"
)

// Ledger is the durable record of rides. Every status transition goes
// through a conditional update executed atomically by the store; the ledger
// is the single concurrency boundary for ride ownership, so a multi-instance
// deployment stays correct without any cross-process locking.
type Ledger interface {
	// Create inserts a new pending ride. If a ride with the same code
	// already exists (a retried booking), the existing record is returned
	// with existing=true and no error.
	Create(ctx context.Context, ride Ride) (stored *Ride, existing bool, err error)

	GetByCode(ctx context.Context, code string) (*Ride, error)

	// Accept performs "set accepted/driver WHERE code AND status=pending" as
	// one atomic statement. verifyCode is applied only when the ride has
	// none yet. Zero rows affected yields ErrRideTaken (or ErrNotFound when
	// no such ride exists at all).
	Accept(ctx context.Context, code, driverID, driverName, verifyCode string, at time.Time) (*Ride, error)

	// Start transitions accepted -> started for the assigned driver only.
	// Failures are classified: ErrNotFound, ErrForbidden (wrong driver),
	// ErrInvalidStatus (wrong prior state).
	Start(ctx context.Context, code, driverID string, at time.Time) (*Ride, error)

	// Complete transitions started -> completed and persists actuals.
	Complete(ctx context.Context, code, driverID string, report CompletionReport, at time.Time) (*Ride, error)

	// Cancel transitions pending/accepted -> cancelled on behalf of the
	// rider that owns the ride.
	Cancel(ctx context.Context, code, riderID, reason string, at time.Time) (*Ride, error)

	// AppendEvent records an audit-trail row; best-effort.
	AppendEvent(ctx context.Context, code, eventType string, payload interface{}) error
}

// Sequence produces ride codes. Implementations must make the
// increment-and-read a single atomic operation against durable storage.
type Sequence interface {
	NextRideCode(ctx context.Context) (string, error)
}

// Pusher is the external push-notification capability.
type Pusher interface {
	SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushReport, error)
}

type PushReport struct {
	SuccessCount int
	FailureCount int
	Errors       []string
}

// Quoter is the external fare-calculation service.
type Quoter interface {
	Quote(ctx context.Context, class VehicleClass, distanceKm float64) (float64, error)
}

// EventPublisher fans lifecycle events out to the broker for consumers
// outside the coordinator. Failures degrade, they never fail the operation.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, data interface{}) error
}
