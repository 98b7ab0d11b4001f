package geo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kayafamilly/carpool-core/internal/models"
)

// indexTTL bounds how long a published location survives in the index
// without a refresh, so cancelled/expired entries fall out on their own.
const indexTTL = 24 * time.Hour

// Candidate is an indexed entity with its distance to the query point.
type Candidate struct {
	ID             uuid.UUID
	DistanceMeters float64
}

// GeoIndex indexes rides and requests by location for proximity search,
// grounded on the driver geo-set pattern but generalized to any entity kind
// (rides, requests) under its own Redis key namespace.
type GeoIndex interface {
	Put(ctx context.Context, namespace string, id uuid.UUID, point models.GeoPoint) error
	Remove(ctx context.Context, namespace string, id uuid.UUID) error
	Nearby(ctx context.Context, namespace string, center models.GeoPoint, radiusMeters float64, limit int) ([]Candidate, error)
}

type redisGeoIndex struct {
	redis *redis.Client
}

// NewRedisGeoIndex builds a GeoIndex backed by Redis sorted-set geo commands.
func NewRedisGeoIndex(client *redis.Client) GeoIndex {
	return &redisGeoIndex{redis: client}
}

func geoKey(namespace string) string {
	return fmt.Sprintf("geo:%s", namespace)
}

func (g *redisGeoIndex) Put(ctx context.Context, namespace string, id uuid.UUID, point models.GeoPoint) error {
	if err := g.redis.GeoAdd(ctx, geoKey(namespace), &redis.GeoLocation{
		Name:      id.String(),
		Longitude: point.Lon,
		Latitude:  point.Lat,
	}).Err(); err != nil {
		return err
	}
	return g.redis.Expire(ctx, geoKey(namespace), indexTTL).Err()
}

func (g *redisGeoIndex) Remove(ctx context.Context, namespace string, id uuid.UUID) error {
	return g.redis.ZRem(ctx, geoKey(namespace), id.String()).Err()
}

func (g *redisGeoIndex) Nearby(ctx context.Context, namespace string, center models.GeoPoint, radiusMeters float64, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 50
	}

	locations, err := g.redis.GeoRadius(ctx, geoKey(namespace), center.Lon, center.Lat, &redis.GeoRadiusQuery{
		Radius:    radiusMeters / 1000.0,
		Unit:      "km",
		WithDist:  true,
		Count:     limit,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(locations))
	for _, loc := range locations {
		id, err := uuid.Parse(loc.Name)
		if err != nil {
			continue
		}
		out = append(out, Candidate{ID: id, DistanceMeters: loc.Dist * 1000.0})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	return out, nil
}
