package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ride-dispatch/internal/dispatch/domain"
)

const storeTimeout = 2 * time.Second

// RedisStore mirrors driver presence into a geo set plus a per-driver hash,
// keyed by driver id, for consumers that want proximity queries.
type RedisStore struct {
	client *redis.Client
	geoKey string
}

func NewRedisStore(client *redis.Client, geoKey string) *RedisStore {
	return &RedisStore{client: client, geoKey: geoKey}
}

func (s *RedisStore) SaveDriver(ctx context.Context, p domain.DriverPresence) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	pipe := s.client.Pipeline()
	pipe.GeoAdd(ctx, s.geoKey, &redis.GeoLocation{
		Name:      p.DriverID,
		Latitude:  p.Location.Lat,
		Longitude: p.Location.Lng,
	})
	pipe.HSet(ctx, metaKey(p.DriverID), map[string]interface{}{
		"name":      p.Name,
		"class":     string(p.VehicleClass),
		"state":     string(p.State),
		"last_seen": p.LastSeen.Unix(),
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) RemoveDriver(ctx context.Context, driverID string) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	pipe := s.client.Pipeline()
	pipe.ZRem(ctx, s.geoKey, driverID)
	pipe.Del(ctx, metaKey(driverID))
	_, err := pipe.Exec(ctx)
	return err
}

func metaKey(driverID string) string {
	return fmt.Sprintf("driver:meta:%s", driverID)
}
