// Package ledger is the durable record of rides and the single source of
// truth for ride ownership. All lifecycle transitions are single conditional
// UPDATE statements so concurrent attempts serialize inside Postgres; the
// first write wins and every loser sees zero rows affected.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ride-dispatch/internal/dispatch/domain"
)

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

const rideColumns = `
	code, rider_id, rider_name, rider_contact, customer_id,
	pickup_addr, pickup_lat, pickup_lng,
	drop_addr, drop_lat, drop_lng,
	vehicle_class, fare, estimated_km, estimated_minutes,
	verify_code, status, COALESCE(driver_id, ''), COALESCE(driver_name, ''),
	COALESCE(actual_km, 0), COALESCE(actual_fare, 0),
	created_at, accepted_at, started_at, completed_at, cancelled_at,
	COALESCE(cancel_reason, '')`

func scanRide(row pgx.Row) (*domain.Ride, error) {
	var r domain.Ride
	err := row.Scan(
		&r.Code, &r.RiderID, &r.RiderName, &r.RiderContact, &r.CustomerID,
		&r.Pickup.Address, &r.Pickup.Lat, &r.Pickup.Lng,
		&r.Drop.Address, &r.Drop.Lat, &r.Drop.Lng,
		&r.VehicleClass, &r.Fare, &r.EstimatedKm, &r.EstimatedMinutes,
		&r.VerifyCode, &r.Status, &r.DriverID, &r.DriverName,
		&r.ActualKm, &r.ActualFare,
		&r.CreatedAt, &r.AcceptedAt, &r.StartedAt, &r.CompletedAt, &r.CancelledAt,
		&r.CancelReason,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *Postgres) Create(ctx context.Context, ride domain.Ride) (*domain.Ride, bool, error) {
	_, err := p.db.Exec(ctx, `
		INSERT INTO rides (
			code, rider_id, rider_name, rider_contact, customer_id,
			pickup_addr, pickup_lat, pickup_lng,
			drop_addr, drop_lat, drop_lng,
			vehicle_class, fare, estimated_km, estimated_minutes,
			verify_code, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`,
		ride.Code, ride.RiderID, ride.RiderName, ride.RiderContact, ride.CustomerID,
		ride.Pickup.Address, ride.Pickup.Lat, ride.Pickup.Lng,
		ride.Drop.Address, ride.Drop.Lat, ride.Drop.Lng,
		ride.VehicleClass, ride.Fare, ride.EstimatedKm, ride.EstimatedMinutes,
		ride.VerifyCode, domain.StatusPending, ride.CreatedAt,
	)
	if err != nil {
		// A duplicate code means a retried booking: hand back the record
		// that already won, not an error.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, getErr := p.GetByCode(ctx, ride.Code)
			if getErr != nil {
				return nil, false, fmt.Errorf("fetch existing ride %s: %w", ride.Code, getErr)
			}
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("insert ride %s: %w", ride.Code, domain.ErrUnavailable)
	}

	stored := ride
	stored.Status = domain.StatusPending
	return &stored, false, nil
}

func (p *Postgres) GetByCode(ctx context.Context, code string) (*domain.Ride, error) {
	row := p.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE code = $1`, code)
	ride, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ride %s: %w", code, err)
	}
	return ride, nil
}

// Accept resolves the first-acceptance race. The status=pending predicate in
// the WHERE clause is what makes this correct under concurrency; reading the
// status first and writing afterwards would reintroduce the race.
func (p *Postgres) Accept(ctx context.Context, code, driverID, driverName, verifyCode string, at time.Time) (*domain.Ride, error) {
	row := p.db.QueryRow(ctx, `
		UPDATE rides
		SET status = $2,
		    driver_id = $3,
		    driver_name = $4,
		    verify_code = CASE WHEN verify_code = '' THEN $5 ELSE verify_code END,
		    accepted_at = $6
		WHERE code = $1 AND status = $7
		RETURNING `+rideColumns,
		code, domain.StatusAccepted, driverID, driverName, verifyCode, at, domain.StatusPending,
	)
	ride, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, p.classify(ctx, code, domain.ErrRideTaken)
	}
	if err != nil {
		return nil, fmt.Errorf("accept ride %s: %w", code, err)
	}
	return ride, nil
}

func (p *Postgres) Start(ctx context.Context, code, driverID string, at time.Time) (*domain.Ride, error) {
	row := p.db.QueryRow(ctx, `
		UPDATE rides
		SET status = $3, started_at = $4
		WHERE code = $1 AND driver_id = $2 AND status = $5
		RETURNING `+rideColumns,
		code, driverID, domain.StatusStarted, at, domain.StatusAccepted,
	)
	ride, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, p.classifyDriver(ctx, code, driverID)
	}
	if err != nil {
		return nil, fmt.Errorf("start ride %s: %w", code, err)
	}
	return ride, nil
}

func (p *Postgres) Complete(ctx context.Context, code, driverID string, report domain.CompletionReport, at time.Time) (*domain.Ride, error) {
	var actualPickup, actualDrop []byte
	if report.ActualPickup != nil {
		actualPickup, _ = json.Marshal(report.ActualPickup)
	}
	if report.ActualDrop != nil {
		actualDrop, _ = json.Marshal(report.ActualDrop)
	}

	row := p.db.QueryRow(ctx, `
		UPDATE rides
		SET status = $3, completed_at = $4,
		    actual_km = $5, actual_fare = $6,
		    actual_pickup = $7::jsonb, actual_drop = $8::jsonb
		WHERE code = $1 AND driver_id = $2 AND status = $9
		RETURNING `+rideColumns,
		code, driverID, domain.StatusCompleted, at,
		report.ActualKm, report.ActualFare, actualPickup, actualDrop,
		domain.StatusStarted,
	)
	ride, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, p.classifyDriver(ctx, code, driverID)
	}
	if err != nil {
		return nil, fmt.Errorf("complete ride %s: %w", code, err)
	}
	return ride, nil
}

func (p *Postgres) Cancel(ctx context.Context, code, riderID, reason string, at time.Time) (*domain.Ride, error) {
	row := p.db.QueryRow(ctx, `
		UPDATE rides
		SET status = $3, cancelled_at = $4, cancel_reason = $5
		WHERE code = $1 AND rider_id = $2 AND status IN ($6, $7)
		RETURNING `+rideColumns,
		code, riderID, domain.StatusCancelled, at, reason,
		domain.StatusPending, domain.StatusAccepted,
	)
	ride, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, p.classifyRider(ctx, code, riderID)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel ride %s: %w", code, err)
	}
	return ride, nil
}

func (p *Postgres) AppendEvent(ctx context.Context, code, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO ride_events (ride_code, event_type, event_data, created_at)
		VALUES ($1, $2, $3::jsonb, NOW())
	`, code, eventType, string(data))
	if err != nil {
		return fmt.Errorf("insert ride event: %w", err)
	}
	return nil
}

// classify turns a zero-row conditional update into the caller-facing
// error: ErrNotFound when there is no such ride, otherwise the supplied
// conflict error. The extra read runs only on the failure path.
func (p *Postgres) classify(ctx context.Context, code string, conflict error) error {
	if _, err := p.GetByCode(ctx, code); errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return conflict
}

func (p *Postgres) classifyDriver(ctx context.Context, code, driverID string) error {
	ride, err := p.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if ride.DriverID != "" && ride.DriverID != driverID {
		return domain.ErrForbidden
	}
	return domain.ErrInvalidStatus
}

func (p *Postgres) classifyRider(ctx context.Context, code, riderID string) error {
	ride, err := p.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if ride.RiderID != riderID {
		return domain.ErrForbidden
	}
	return domain.ErrInvalidStatus
}
