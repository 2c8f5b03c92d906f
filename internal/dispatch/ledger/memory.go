package ledger

import (
	"context"
	"sync"
	"time"

	"ride-dispatch/internal/dispatch/domain"
)

// Memory is an in-process ledger with the same conditional-update semantics
// as the Postgres implementation. It backs tests and local runs without a
// database; the compare-and-set happens under one mutex so concurrent
// accepts still resolve to exactly one winner.
type Memory struct {
	mu     sync.Mutex
	rides  map[string]*domain.Ride
	events []MemoryEvent
}

type MemoryEvent struct {
	RideCode  string
	EventType string
	Payload   interface{}
}

func NewMemory() *Memory {
	return &Memory{rides: make(map[string]*domain.Ride)}
}

func (m *Memory) Create(ctx context.Context, ride domain.Ride) (*domain.Ride, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.rides[ride.Code]; ok {
		cp := *existing
		return &cp, true, nil
	}

	ride.Status = domain.StatusPending
	stored := ride
	m.rides[ride.Code] = &stored
	cp := stored
	return &cp, false, nil
}

func (m *Memory) GetByCode(ctx context.Context, code string) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ride
	return &cp, nil
}

func (m *Memory) Accept(ctx context.Context, code, driverID, driverName, verifyCode string, at time.Time) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if ride.Status != domain.StatusPending {
		return nil, domain.ErrRideTaken
	}

	ride.Status = domain.StatusAccepted
	ride.DriverID = driverID
	ride.DriverName = driverName
	if ride.VerifyCode == "" {
		ride.VerifyCode = verifyCode
	}
	t := at
	ride.AcceptedAt = &t

	cp := *ride
	return &cp, nil
}

func (m *Memory) Start(ctx context.Context, code, driverID string, at time.Time) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if ride.DriverID != "" && ride.DriverID != driverID {
		return nil, domain.ErrForbidden
	}
	if ride.Status != domain.StatusAccepted {
		return nil, domain.ErrInvalidStatus
	}

	ride.Status = domain.StatusStarted
	t := at
	ride.StartedAt = &t

	cp := *ride
	return &cp, nil
}

func (m *Memory) Complete(ctx context.Context, code, driverID string, report domain.CompletionReport, at time.Time) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if ride.DriverID != "" && ride.DriverID != driverID {
		return nil, domain.ErrForbidden
	}
	if ride.Status != domain.StatusStarted {
		return nil, domain.ErrInvalidStatus
	}

	ride.Status = domain.StatusCompleted
	ride.ActualKm = report.ActualKm
	ride.ActualFare = report.ActualFare
	ride.ActualPickup = report.ActualPickup
	ride.ActualDrop = report.ActualDrop
	t := at
	ride.CompletedAt = &t

	cp := *ride
	return &cp, nil
}

func (m *Memory) Cancel(ctx context.Context, code, riderID, reason string, at time.Time) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if ride.RiderID != riderID {
		return nil, domain.ErrForbidden
	}
	if ride.Status != domain.StatusPending && ride.Status != domain.StatusAccepted {
		return nil, domain.ErrInvalidStatus
	}

	ride.Status = domain.StatusCancelled
	ride.CancelReason = reason
	t := at
	ride.CancelledAt = &t

	cp := *ride
	return &cp, nil
}

func (m *Memory) AppendEvent(ctx context.Context, code, eventType string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, MemoryEvent{RideCode: code, EventType: eventType, Payload: payload})
	return nil
}

// Events returns a copy of the recorded audit trail.
func (m *Memory) Events() []MemoryEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryEvent, len(m.events))
	copy(out, m.events)
	return out
}
