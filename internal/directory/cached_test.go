package directory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

type countingDirectory struct {
	*Memory
	artisanCalls atomic.Int32
	clientCalls  atomic.Int32
}

func (d *countingDirectory) ArtisanByUserID(ctx context.Context, userID uuid.UUID) (ports.ArtisanProfile, error) {
	d.artisanCalls.Add(1)
	return d.Memory.ArtisanByUserID(ctx, userID)
}

func (d *countingDirectory) ClientSummaries(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ports.ClientSummary, error) {
	d.clientCalls.Add(1)
	return d.Memory.ClientSummaries(ctx, ids)
}

func TestCachedArtisanLookupHitsUpstreamOnce(t *testing.T) {
	upstream := &countingDirectory{Memory: NewMemory()}
	artisan := upstream.AddArtisan(ports.ArtisanProfile{Email: "a1@example.com", SectorIDs: []string{"plumbing"}})

	cached, err := NewCached(upstream, upstream, 1<<20, time.Minute)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	defer cached.Close()

	ctx := context.Background()
	if _, err := cached.ArtisanByUserID(ctx, artisan.UserID); err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	cached.Wait()
	got, err := cached.ArtisanByUserID(ctx, artisan.UserID)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if got.ID != artisan.ID {
		t.Fatalf("unexpected artisan %+v", got)
	}
	if n := upstream.artisanCalls.Load(); n != 1 {
		t.Fatalf("expected one upstream call, got %d", n)
	}
}

func TestCachedDoesNotCacheMisses(t *testing.T) {
	upstream := &countingDirectory{Memory: NewMemory()}
	cached, err := NewCached(upstream, upstream, 1<<20, time.Minute)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	defer cached.Close()

	unknown := uuid.New()
	for i := 0; i < 2; i++ {
		if _, err := cached.ArtisanByUserID(context.Background(), unknown); !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if n := upstream.artisanCalls.Load(); n != 2 {
		t.Fatalf("expected misses to reach upstream each time, got %d", n)
	}
}

func TestCachedClientSummariesFetchesOnlyMissing(t *testing.T) {
	upstream := &countingDirectory{Memory: NewMemory()}
	c1 := upstream.AddClient(ports.ClientProfile{FirstName: "Ana", LastName: "Diaz", City: "Lyon"})
	c2 := upstream.AddClient(ports.ClientProfile{FirstName: "Bo", LastName: "Li"})

	cached, err := NewCached(upstream, upstream, 1<<20, time.Minute)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	defer cached.Close()

	ctx := context.Background()
	if _, err := cached.ClientSummaries(ctx, []uuid.UUID{c1.ID}); err != nil {
		t.Fatalf("warm: %v", err)
	}
	cached.Wait()

	got, err := cached.ClientSummaries(ctx, []uuid.UUID{c1.ID, c2.ID})
	if err != nil {
		t.Fatalf("ClientSummaries: %v", err)
	}
	if len(got) != 2 || got[c1.ID].City != "Lyon" {
		t.Fatalf("unexpected summaries %+v", got)
	}
	if n := upstream.clientCalls.Load(); n != 2 {
		t.Fatalf("expected two upstream calls, got %d", n)
	}

	cached.Wait()
	if _, err := cached.ClientSummaries(ctx, []uuid.UUID{c1.ID, c2.ID}); err != nil {
		t.Fatalf("cached: %v", err)
	}
	if n := upstream.clientCalls.Load(); n != 2 {
		t.Fatalf("expected fully cached call, got %d upstream calls", n)
	}
}
