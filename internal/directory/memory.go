// Package directory resolves the account and profile data the lead engine
// reads but does not own: artisans, clients and user emails.
package directory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"

	"github.com/google/uuid"
)

// Memory is an in-process directory for STORAGE_DRIVER=memory and tests.
type Memory struct {
	mu       sync.RWMutex
	artisans map[uuid.UUID]ports.ArtisanProfile // by user id
	clients  map[uuid.UUID]ports.ClientProfile  // by user id
	emails   map[uuid.UUID]string
}

var (
	_ ports.ArtisanDirectory = (*Memory)(nil)
	_ ports.ClientDirectory  = (*Memory)(nil)
	_ ports.UserDirectory    = (*Memory)(nil)
)

// NewMemory creates an empty directory.
func NewMemory() *Memory {
	return &Memory{
		artisans: make(map[uuid.UUID]ports.ArtisanProfile),
		clients:  make(map[uuid.UUID]ports.ClientProfile),
		emails:   make(map[uuid.UUID]string),
	}
}

// AddArtisan registers an artisan, assigning ids when missing.
func (m *Memory) AddArtisan(p ports.ArtisanProfile) ports.ArtisanProfile {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.UserID == uuid.Nil {
		p.UserID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artisans[p.UserID] = p
	m.emails[p.UserID] = p.Email
	return p
}

// AddClient registers a client, assigning ids when missing.
func (m *Memory) AddClient(p ports.ClientProfile) ports.ClientProfile {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.UserID == uuid.Nil {
		p.UserID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[p.UserID] = p
	m.emails[p.UserID] = p.Email
	return p
}

func (m *Memory) ArtisanByUserID(_ context.Context, userID uuid.UUID) (ports.ArtisanProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.artisans[userID]
	if !ok {
		return ports.ArtisanProfile{}, apperr.NotFound("artisan not found")
	}
	p.SectorIDs = slices.Clone(p.SectorIDs)
	return p, nil
}

func (m *Memory) ArtisansInSectors(_ context.Context, sectorIDs []string) ([]ports.ArtisanProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ports.ArtisanProfile, 0)
	for _, p := range m.artisans {
		if p.Suspended {
			continue
		}
		for _, s := range p.SectorIDs {
			if slices.Contains(sectorIDs, s) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) CountActiveArtisans(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.artisans {
		if !p.Suspended {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ClientByUserID(_ context.Context, userID uuid.UUID) (ports.ClientProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.clients[userID]
	if !ok {
		return ports.ClientProfile{}, apperr.NotFound("client not found")
	}
	return p, nil
}

func (m *Memory) ClientByID(_ context.Context, clientID uuid.UUID) (ports.ClientProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.clients {
		if p.ID == clientID {
			return p, nil
		}
	}
	return ports.ClientProfile{}, apperr.NotFound("client not found")
}

func (m *Memory) ClientSummaries(_ context.Context, clientIDs []uuid.UUID) (map[uuid.UUID]ports.ClientSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uuid.UUID]ports.ClientSummary, len(clientIDs))
	for _, p := range m.clients {
		if slices.Contains(clientIDs, p.ID) {
			out[p.ID] = summaryOf(p)
		}
	}
	return out, nil
}

func (m *Memory) EmailsByUserIDs(_ context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uuid.UUID]string, len(userIDs))
	for _, id := range userIDs {
		if email, ok := m.emails[id]; ok {
			out[id] = email
		}
	}
	return out, nil
}

func (m *Memory) UserIDsByEmail(_ context.Context, fragment string) ([]uuid.UUID, error) {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uuid.UUID, 0)
	for id, email := range m.emails {
		if strings.Contains(strings.ToLower(email), fragment) {
			out = append(out, id)
		}
	}
	return out, nil
}

func summaryOf(p ports.ClientProfile) ports.ClientSummary {
	return ports.ClientSummary{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName, City: p.City}
}
