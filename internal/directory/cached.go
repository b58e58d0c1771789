package directory

import (
	"context"
	"time"

	"leadmarket_backend/internal/leads/ports"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// entryCost approximates the bytes held by one cached profile.
const entryCost = 512

// Cached fronts artisan and client lookups with an in-process ristretto cache.
// Concurrent misses for the same key share one upstream call.
type Cached struct {
	ports.ArtisanDirectory
	ports.ClientDirectory

	artisans *ristretto.Cache[string, ports.ArtisanProfile]
	clients  *ristretto.Cache[string, ports.ClientSummary]
	ttl      time.Duration
	group    singleflight.Group
}

// NewCached wraps artisans and clients. maxCostBytes bounds each cache.
func NewCached(artisans ports.ArtisanDirectory, clients ports.ClientDirectory, maxCostBytes int64, ttl time.Duration) (*Cached, error) {
	artisanCache, err := ristretto.NewCache(&ristretto.Config[string, ports.ArtisanProfile]{
		NumCounters: maxCostBytes / entryCost * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	clientCache, err := ristretto.NewCache(&ristretto.Config[string, ports.ClientSummary]{
		NumCounters: maxCostBytes / entryCost * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		artisanCache.Close()
		return nil, err
	}
	return &Cached{
		ArtisanDirectory: artisans,
		ClientDirectory:  clients,
		artisans:         artisanCache,
		clients:          clientCache,
		ttl:              ttl,
	}, nil
}

// ArtisanByUserID serves from cache, loading once per key on a miss.
// Lookup failures are not cached.
func (c *Cached) ArtisanByUserID(ctx context.Context, userID uuid.UUID) (ports.ArtisanProfile, error) {
	key := "artisan:" + userID.String()
	if p, ok := c.artisans.Get(key); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		p, err := c.ArtisanDirectory.ArtisanByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.artisans.SetWithTTL(key, p, entryCost, c.ttl)
		return p, nil
	})
	if err != nil {
		return ports.ArtisanProfile{}, err
	}
	return v.(ports.ArtisanProfile), nil
}

// ClientSummaries serves cached summaries and fetches the rest in one call.
func (c *Cached) ClientSummaries(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID]ports.ClientSummary, error) {
	out := make(map[uuid.UUID]ports.ClientSummary, len(clientIDs))
	missing := make([]uuid.UUID, 0, len(clientIDs))
	for _, id := range clientIDs {
		if s, ok := c.clients.Get("client:" + id.String()); ok {
			out[id] = s
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.ClientDirectory.ClientSummaries(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, s := range fetched {
		c.clients.SetWithTTL("client:"+id.String(), s, entryCost, c.ttl)
		out[id] = s
	}
	return out, nil
}

// Wait blocks until pending cache writes are visible.
func (c *Cached) Wait() {
	c.artisans.Wait()
	c.clients.Wait()
}

// Close releases the caches.
func (c *Cached) Close() {
	c.artisans.Close()
	c.clients.Close()
}
