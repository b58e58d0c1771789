package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadmarket_backend/internal/directory"
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/memstore"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

type stubThumbnails struct {
	urls map[uuid.UUID]string
	err  error
}

func (s stubThumbnails) Thumbnails(context.Context, []uuid.UUID) (map[uuid.UUID]string, error) {
	return s.urls, s.err
}

type fixture struct {
	svc    *Service
	leads  *memstore.LeadStore
	access *memstore.AccessLedger
	dir    *directory.Memory
	client ports.ClientProfile
}

func newFixture(t *testing.T, thumbs ports.ThumbnailProvider) *fixture {
	t.Helper()
	f := &fixture{
		leads:  memstore.NewLeadStore(),
		access: memstore.NewAccessLedger(),
		dir:    directory.NewMemory(),
	}
	f.client = f.dir.AddClient(ports.ClientProfile{Email: "client@example.com", FirstName: "Ana", LastName: "Diaz", City: "Lyon"})
	f.svc = New(f.leads, f.access, f.dir, f.dir, thumbs, logger.Nop())
	return f
}

func (f *fixture) lead(t *testing.T, city string, sectors ...string) domain.Lead {
	t.Helper()
	lead, err := domain.NewLead(f.client.ID, "Job", "Something needs fixing", city, sectors, nil)
	if err != nil {
		t.Fatalf("NewLead: %v", err)
	}
	stored, err := f.leads.Create(context.Background(), lead)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(time.Millisecond)
	return stored
}

func (f *fixture) setStatus(t *testing.T, id uuid.UUID, status domain.Status, claimant *uuid.UUID) {
	t.Helper()
	ok, err := f.leads.CompareAndSetStatus(context.Background(), id, domain.StatusNew, status, claimant)
	if err != nil || !ok {
		t.Fatalf("CAS: ok=%v err=%v", ok, err)
	}
}

func TestAvailableOnlyNewLeadsInArtisanSectors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	artisan := f.dir.AddArtisan(ports.ArtisanProfile{SectorIDs: []string{"plumbing", "heating"}})
	other := uuid.New()

	plumbing := f.lead(t, "Lyon", "plumbing")
	heating := f.lead(t, "Paris", "heating")
	f.lead(t, "Lyon", "electrical")
	reserved := f.lead(t, "Lyon", "plumbing")
	f.setStatus(t, reserved.ID, domain.StatusReserved, &other)

	page, err := f.svc.Available(ctx, artisan.UserID, ArtisanQuery{})
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if page.TotalCount != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 leads, got total=%d items=%d", page.TotalCount, len(page.Items))
	}
	if page.Items[0].ID != heating.ID || page.Items[1].ID != plumbing.ID {
		t.Fatal("expected newest first")
	}
	for _, item := range page.Items {
		if item.Status != domain.StatusNew {
			t.Fatalf("non-NEW lead listed: %+v", item.Lead)
		}
		if item.Client == nil || item.Client.FirstName != "Ana" {
			t.Fatalf("expected client summary, got %+v", item.Client)
		}
	}

	page, _ = f.svc.Available(ctx, artisan.UserID, ArtisanQuery{City: "LYON"})
	if page.TotalCount != 1 || page.Items[0].ID != plumbing.ID {
		t.Fatalf("expected city filter to keep only the Lyon plumbing lead, got %+v", page)
	}
}

func TestAvailableRequestedSectorsOutsideArtisanScope(t *testing.T) {
	f := newFixture(t, nil)
	artisan := f.dir.AddArtisan(ports.ArtisanProfile{SectorIDs: []string{"plumbing"}})
	f.lead(t, "", "electrical")
	f.lead(t, "", "plumbing")

	page, err := f.svc.Available(context.Background(), artisan.UserID, ArtisanQuery{SectorIDs: []string{"electrical"}, Page: domain.PageRequest{Page: 2, PageSize: 500}})
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if page.TotalCount != 0 || len(page.Items) != 0 {
		t.Fatalf("expected empty page, got %+v", page)
	}
	if page.Page != 2 || page.PageSize != 100 {
		t.Fatalf("expected normalized paging, got page=%d size=%d", page.Page, page.PageSize)
	}

	page, _ = f.svc.Available(context.Background(), artisan.UserID, ArtisanQuery{SectorIDs: []string{"electrical", "plumbing"}})
	if page.TotalCount != 1 {
		t.Fatalf("expected foreign sector dropped, got %d", page.TotalCount)
	}
}

func TestMyLeadsKeepsGrantsAfterStatusChanges(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	artisan := f.dir.AddArtisan(ports.ArtisanProfile{SectorIDs: []string{"plumbing"}})

	empty, err := f.svc.MyLeads(ctx, artisan.UserID, ArtisanQuery{})
	if err != nil || empty.TotalCount != 0 {
		t.Fatalf("expected empty page, got %+v err=%v", empty, err)
	}

	lead := f.lead(t, "", "plumbing")
	f.setStatus(t, lead.ID, domain.StatusReserved, &artisan.ID)
	if err := f.access.Grant(ctx, lead.ID, artisan.ID); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	closed := domain.StatusClosed
	if _, err := f.leads.AdminUpdate(ctx, lead.ID, domain.AdminUpdate{Status: &closed}); err != nil {
		t.Fatalf("AdminUpdate: %v", err)
	}

	page, err := f.svc.MyLeads(ctx, artisan.UserID, ArtisanQuery{})
	if err != nil {
		t.Fatalf("MyLeads: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].Status != domain.StatusClosed {
		t.Fatalf("expected the closed lead to remain visible, got %+v", page)
	}
}

func TestMyProjectsStatusFilter(t *testing.T) {
	f := newFixture(t, nil)
	other := uuid.New()
	f.lead(t, "", "plumbing")
	sold := f.lead(t, "", "plumbing")
	f.setStatus(t, sold.ID, domain.StatusSold, &other)

	status := domain.StatusSold
	page, err := f.svc.MyProjects(context.Background(), f.client.UserID, &status, domain.PageRequest{})
	if err != nil {
		t.Fatalf("MyProjects: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].ID != sold.ID {
		t.Fatalf("expected only the sold project, got %+v", page)
	}

	if _, err := f.svc.MyProjects(context.Background(), uuid.New(), nil, domain.PageRequest{}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for non-client, got %v", err)
	}
}

func TestAdminListStatusFilter(t *testing.T) {
	f := newFixture(t, nil)
	buyer := uuid.New()
	f.lead(t, "", "plumbing")
	sold := f.lead(t, "", "electrical")
	f.setStatus(t, sold.ID, domain.StatusSold, &buyer)

	status := domain.StatusSold
	page, err := f.svc.AdminList(context.Background(), domain.LeadFilter{Status: &status}, domain.PageRequest{})
	if err != nil {
		t.Fatalf("AdminList: %v", err)
	}
	if page.TotalCount != 1 || page.Items[0].ID != sold.ID {
		t.Fatalf("expected exactly the sold lead, got %+v", page)
	}
}

func TestDetailAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	granted := f.dir.AddArtisan(ports.ArtisanProfile{SectorIDs: []string{"plumbing"}})
	stranger := f.dir.AddArtisan(ports.ArtisanProfile{SectorIDs: []string{"plumbing"}})
	otherClient := f.dir.AddClient(ports.ClientProfile{FirstName: "Bo"})
	lead := f.lead(t, "", "plumbing")
	if err := f.access.Grant(ctx, lead.ID, granted.ID); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	cases := []struct {
		name   string
		viewer Viewer
		allow  bool
	}{
		{"owner", Viewer{UserID: f.client.UserID, Roles: []string{RoleClient}}, true},
		{"other client", Viewer{UserID: otherClient.UserID, Roles: []string{RoleClient}}, false},
		{"granted artisan", Viewer{UserID: granted.UserID, Roles: []string{RoleArtisan}}, true},
		{"artisan without grant", Viewer{UserID: stranger.UserID, Roles: []string{RoleArtisan}}, false},
		{"admin", Viewer{UserID: uuid.New(), Roles: []string{RoleAdmin}}, true},
		{"no role", Viewer{UserID: uuid.New()}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Detail(ctx, lead.ID, tc.viewer)
			if tc.allow && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tc.allow && !apperr.Is(err, apperr.KindForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}

	if _, err := f.svc.Detail(ctx, uuid.New(), Viewer{Roles: []string{RoleAdmin}}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEnrichmentFailureDegrades(t *testing.T) {
	f := newFixture(t, stubThumbnails{err: errors.New("minio down")})
	artisan := f.dir.AddArtisan(ports.ArtisanProfile{SectorIDs: []string{"plumbing"}})
	f.lead(t, "", "plumbing")

	page, err := f.svc.Available(context.Background(), artisan.UserID, ArtisanQuery{})
	if err != nil {
		t.Fatalf("expected listing to survive thumbnail failure, got %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ThumbnailURL != "" {
		t.Fatalf("expected item without thumbnail, got %+v", page.Items)
	}
}

func TestEnrichmentAddsThumbnail(t *testing.T) {
	thumbs := stubThumbnails{urls: map[uuid.UUID]string{}}
	f := newFixture(t, thumbs)
	artisan := f.dir.AddArtisan(ports.ArtisanProfile{SectorIDs: []string{"plumbing"}})
	lead := f.lead(t, "", "plumbing")
	thumbs.urls[lead.ID] = "https://files.example.com/a.jpg"

	page, err := f.svc.Available(context.Background(), artisan.UserID, ArtisanQuery{})
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if page.Items[0].ThumbnailURL != "https://files.example.com/a.jpg" {
		t.Fatalf("expected thumbnail, got %q", page.Items[0].ThumbnailURL)
	}
}
