// Package sequence issues the human-readable ride codes (RID100000 and up).
// The durable counter lives in a single Postgres row; increment-and-read is
// one atomic upsert, never a read followed by a write, so concurrent callers
// can never observe the same value. Past the ceiling the counter wraps back
// to the floor.
package sequence

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ride-dispatch/internal/shared/util"
)

const codePrefix = "RID"

type Postgres struct {
	db    *pgxpool.Pool
	floor int64
	ceil  int64
	log   *util.Logger
}

func NewPostgres(db *pgxpool.Pool, floor, ceil int64, log *util.Logger) *Postgres {
	return &Postgres{db: db, floor: floor, ceil: ceil, log: log}
}

// NextRideCode returns the next code in sequence. When the counter row is
// unreachable it falls back to a timestamp+random composite: uniqueness is
// then only probabilistic, which callers tolerate as a rare degraded mode
// (the ledger's unique constraint still catches a collision).
func (s *Postgres) NextRideCode(ctx context.Context) (string, error) {
	var value int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO ride_sequence (id, value)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE
		SET value = CASE
			WHEN ride_sequence.value >= $2 THEN $1
			ELSE ride_sequence.value + 1
		END
		RETURNING value
	`, s.floor, s.ceil).Scan(&value)
	if err != nil {
		s.log.Warn("Sequence", fmt.Sprintf("counter unreachable, using fallback code: %v", err))
		return FallbackCode(), nil
	}

	return fmt.Sprintf("%s%06d", codePrefix, value), nil
}

// FallbackCode builds RID + last six digits of unix-millis + three random
// digits.
func FallbackCode() string {
	millis := time.Now().UnixMilli() % 1000000
	return fmt.Sprintf("%s%06d%03d", codePrefix, millis, rand.Intn(1000))
}

// Memory is the counter with identical wrap semantics, used by tests and
// database-less runs.
type Memory struct {
	mu    sync.Mutex
	floor int64
	ceil  int64
	value int64
}

func NewMemory(floor, ceil int64) *Memory {
	return &Memory{floor: floor, ceil: ceil, value: floor - 1}
}

func (m *Memory) NextRideCode(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.value >= m.ceil || m.value < m.floor-1 {
		m.value = m.floor
	} else {
		m.value++
	}
	return fmt.Sprintf("%s%06d", codePrefix, m.value), nil
}
