// Package query serves the role-scoped lead listings and the detail view.
package query

import (
	"context"
	"slices"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Roles understood by Detail.
const (
	RoleArtisan = "artisan"
	RoleClient  = "client"
	RoleAdmin   = "admin"
)

// LeadView is a lead with its optional listing enrichment.
type LeadView struct {
	domain.Lead
	ThumbnailURL string
	Client       *ports.ClientSummary
}

// ArtisanQuery filters the artisan listings.
type ArtisanQuery struct {
	SectorIDs []string
	City      string
	Page      domain.PageRequest
}

// Viewer is the authenticated caller of Detail.
type Viewer struct {
	UserID uuid.UUID
	Roles  []string
}

// Service answers read-only lead queries.
type Service struct {
	leads      ports.LeadStore
	access     ports.AccessLedger
	artisans   ports.ArtisanDirectory
	clients    ports.ClientDirectory
	thumbnails ports.ThumbnailProvider
	log        *logger.Logger
}

// New creates a query service. thumbnails may be nil.
func New(leads ports.LeadStore, access ports.AccessLedger, artisans ports.ArtisanDirectory, clients ports.ClientDirectory, thumbnails ports.ThumbnailProvider, log *logger.Logger) *Service {
	return &Service{
		leads:      leads,
		access:     access,
		artisans:   artisans,
		clients:    clients,
		thumbnails: thumbnails,
		log:        log,
	}
}

// Available lists NEW leads in the artisan's sectors. Requested sectors the
// artisan does not serve are ignored; if none remain the page is empty.
func (s *Service) Available(ctx context.Context, artisanUserID uuid.UUID, q ArtisanQuery) (domain.Page[LeadView], error) {
	artisan, err := s.artisan(ctx, artisanUserID)
	if err != nil {
		return domain.Page[LeadView]{}, err
	}

	sectors := domain.IntersectSectors(artisan.SectorIDs, q.SectorIDs)
	if len(sectors) == 0 {
		return domain.EmptyPage[LeadView](q.Page), nil
	}

	status := domain.StatusNew
	return s.list(ctx, domain.LeadFilter{Status: &status, SectorIDs: sectors, City: q.City}, q.Page, true)
}

// MyLeads lists every lead the artisan was ever granted, whatever its status.
func (s *Service) MyLeads(ctx context.Context, artisanUserID uuid.UUID, q ArtisanQuery) (domain.Page[LeadView], error) {
	artisan, err := s.artisan(ctx, artisanUserID)
	if err != nil {
		return domain.Page[LeadView]{}, err
	}

	ids, err := s.access.ListLeadIDsForArtisan(ctx, artisan.ID)
	if err != nil {
		return domain.Page[LeadView]{}, err
	}
	if len(ids) == 0 {
		return domain.EmptyPage[LeadView](q.Page), nil
	}

	return s.list(ctx, domain.LeadFilter{IDs: ids, City: q.City, SectorIDs: domain.NormalizeSectors(q.SectorIDs)}, q.Page, true)
}

// MyProjects lists the calling client's own leads.
func (s *Service) MyProjects(ctx context.Context, clientUserID uuid.UUID, status *domain.Status, page domain.PageRequest) (domain.Page[LeadView], error) {
	client, err := s.clients.ClientByUserID(ctx, clientUserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return domain.Page[LeadView]{}, apperr.Forbidden("client profile required")
		}
		return domain.Page[LeadView]{}, err
	}
	return s.list(ctx, domain.LeadFilter{ClientID: &client.ID, Status: status}, page, false)
}

// AdminList lists all leads.
func (s *Service) AdminList(ctx context.Context, filter domain.LeadFilter, page domain.PageRequest) (domain.Page[LeadView], error) {
	filter.IDs = nil
	filter.ClientID = nil
	filter.SectorIDs = domain.NormalizeSectors(filter.SectorIDs)
	return s.list(ctx, filter, page, true)
}

// Detail returns one lead if the viewer owns it, holds a grant or is an admin.
func (s *Service) Detail(ctx context.Context, leadID uuid.UUID, viewer Viewer) (LeadView, error) {
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return LeadView{}, err
	}

	if err := s.authorizeDetail(ctx, lead, viewer); err != nil {
		return LeadView{}, err
	}

	views := s.enrich(ctx, []domain.Lead{lead}, true)
	return views[0], nil
}

func (s *Service) authorizeDetail(ctx context.Context, lead domain.Lead, viewer Viewer) error {
	if slices.Contains(viewer.Roles, RoleAdmin) {
		return nil
	}
	if slices.Contains(viewer.Roles, RoleClient) {
		client, err := s.clients.ClientByUserID(ctx, viewer.UserID)
		if err == nil && client.ID == lead.ClientID {
			return nil
		}
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
	}
	if slices.Contains(viewer.Roles, RoleArtisan) {
		artisan, err := s.artisans.ArtisanByUserID(ctx, viewer.UserID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		if err == nil {
			ok, err := s.access.HasGrant(ctx, lead.ID, artisan.ID)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
	}
	return apperr.Forbidden("Forbidden")
}

// list runs the count and the page query concurrently, then enriches.
func (s *Service) list(ctx context.Context, filter domain.LeadFilter, req domain.PageRequest, withClient bool) (domain.Page[LeadView], error) {
	req = req.Normalize()

	var (
		total int
		leads []domain.Lead
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.leads.Count(gctx, filter)
		total = n
		return err
	})
	g.Go(func() error {
		items, err := s.leads.List(gctx, filter, req)
		leads = items
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Page[LeadView]{}, err
	}

	return domain.Page[LeadView]{
		Items:      s.enrich(ctx, leads, withClient),
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalCount: total,
	}, nil
}

// enrich attaches thumbnails and client summaries. Collaborator failures
// leave the fields empty.
func (s *Service) enrich(ctx context.Context, leads []domain.Lead, withClient bool) []LeadView {
	views := make([]LeadView, len(leads))
	for i, l := range leads {
		views[i] = LeadView{Lead: l}
	}
	if len(leads) == 0 {
		return views
	}

	leadIDs := make([]uuid.UUID, 0, len(leads))
	clientIDs := make([]uuid.UUID, 0, len(leads))
	for _, l := range leads {
		leadIDs = append(leadIDs, l.ID)
		if !slices.Contains(clientIDs, l.ClientID) {
			clientIDs = append(clientIDs, l.ClientID)
		}
	}

	var (
		thumbs    map[uuid.UUID]string
		summaries map[uuid.UUID]ports.ClientSummary
	)
	var g errgroup.Group
	if s.thumbnails != nil {
		g.Go(func() error {
			m, err := s.thumbnails.Thumbnails(ctx, leadIDs)
			if err != nil {
				s.log.Warn("thumbnail enrichment failed", "error", err)
				return nil
			}
			thumbs = m
			return nil
		})
	}
	if withClient {
		g.Go(func() error {
			m, err := s.clients.ClientSummaries(ctx, clientIDs)
			if err != nil {
				s.log.Warn("client enrichment failed", "error", err)
				return nil
			}
			summaries = m
			return nil
		})
	}
	_ = g.Wait()

	for i := range views {
		views[i].ThumbnailURL = thumbs[views[i].ID]
		if summary, ok := summaries[views[i].ClientID]; ok {
			summary := summary
			views[i].Client = &summary
		}
	}
	return views
}

func (s *Service) artisan(ctx context.Context, userID uuid.UUID) (ports.ArtisanProfile, error) {
	artisan, err := s.artisans.ArtisanByUserID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return ports.ArtisanProfile{}, apperr.Forbidden("artisan profile required")
		}
		return ports.ArtisanProfile{}, err
	}
	return artisan, nil
}
