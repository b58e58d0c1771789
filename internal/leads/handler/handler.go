package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/management"
	"leadmarket_backend/internal/leads/query"
	"leadmarket_backend/internal/leads/reservation"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/platform/apperr"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"

	headerIdempotencyKey = "Idempotency-Key"
)

var codeValidation = apperr.KindValidation.String()

type Handler struct {
	reservation *reservation.Service
	query       *query.Service
	management  *management.Service
	val         *validator.Validator
}

func New(reservationSvc *reservation.Service, querySvc *query.Service, managementSvc *management.Service, val *validator.Validator) *Handler {
	return &Handler{
		reservation: reservationSvc,
		query:       querySvc,
		management:  managementSvc,
		val:         val,
	}
}

// CreateProject handles POST /projects for clients.
func (h *Handler) CreateProject(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.CreateProjectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lead, err := h.management.Create(c.Request.Context(), id.UserID(), management.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		SectorIDs:   req.SectorIDs,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toLeadResponse(leadView(lead)))
}

// MyProjects handles GET /projects/mine for clients.
func (h *Handler) MyProjects(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	q, ok := h.bindListQuery(c)
	if !ok {
		return
	}
	status := parseOptionalStatus(q.Status)

	page, err := h.query.MyProjects(c.Request.Context(), id.UserID(), status, pageRequest(q.Page, q.PageSize, q.Limit))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toLeadPage(page))
}

// ProjectDetail handles GET /projects/:id for any authenticated role.
func (h *Handler) ProjectDetail(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseID(c)
	if !ok {
		return
	}

	view, err := h.query.Detail(c.Request.Context(), leadID, query.Viewer{UserID: id.UserID(), Roles: id.Roles()})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toLeadResponse(view))
}

// AvailableLeads handles GET /leads for artisans.
func (h *Handler) AvailableLeads(c *gin.Context) {
	h.artisanListing(c, h.query.Available)
}

// MyLeads handles GET /me/leads for artisans.
func (h *Handler) MyLeads(c *gin.Context) {
	h.artisanListing(c, h.query.MyLeads)
}

type artisanListFunc func(ctx context.Context, artisanUserID uuid.UUID, q query.ArtisanQuery) (domain.Page[query.LeadView], error)

func (h *Handler) artisanListing(c *gin.Context, list artisanListFunc) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	q, ok := h.bindListQuery(c)
	if !ok {
		return
	}

	page, err := list(c.Request.Context(), id.UserID(), query.ArtisanQuery{
		SectorIDs: splitValues(q.SectorIDs),
		City:      strings.TrimSpace(q.City),
		Page:      pageRequest(q.Page, q.PageSize, q.Limit),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toLeadPage(page))
}

// Reserve handles POST /leads/:id/reserve.
func (h *Handler) Reserve(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseID(c)
	if !ok {
		return
	}

	reserved, err := h.reservation.Reserve(c.Request.Context(), leadID, id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ReserveResponse{OK: true, ProjectID: reserved})
}

// Purchase handles POST /leads/:id/purchase. The body is optional; an
// Idempotency-Key header makes retries safe.
func (h *Handler) Purchase(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, codeValidation, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, codeValidation, msgValidationFailed, validator.Describe(err))
		return
	}

	result, err := h.reservation.Purchase(c.Request.Context(), reservation.PurchaseInput{
		LeadID:         leadID,
		ArtisanUserID:  id.UserID(),
		AmountCents:    req.AmountCents,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(headerIdempotencyKey)),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.PurchaseResponse{
		OK:            true,
		ProjectID:     result.LeadID,
		TransactionID: result.Transaction.ID,
		AmountCents:   result.Transaction.AmountCents,
		Replayed:      result.Replayed,
	})
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, codeValidation, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, codeValidation, msgValidationFailed, validator.Describe(err))
		return false
	}
	return true
}

func (h *Handler) bindListQuery(c *gin.Context) (transport.ListQuery, bool) {
	var q transport.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, codeValidation, msgInvalidRequest, nil)
		return q, false
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, codeValidation, msgValidationFailed, validator.Describe(err))
		return q, false
	}
	return q, true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, codeValidation, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}

// pageRequest prefers pageSize over its limit alias.
func pageRequest(page, pageSize, limit int) domain.PageRequest {
	if pageSize == 0 {
		pageSize = limit
	}
	return domain.PageRequest{Page: page, PageSize: pageSize}.Normalize()
}

// parseOptionalStatus expects a value already checked by the leadstatus tag.
func parseOptionalStatus(raw string) *domain.Status {
	if raw == "" {
		return nil
	}
	status := domain.Status(raw)
	return &status
}

// splitValues accepts both repeated query keys and comma-separated values.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
