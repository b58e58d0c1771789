package handler

import (
	"net/http"
	"strings"

	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/transport"
	"leadmarket_backend/platform/httpkit"
	"leadmarket_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// AdminListProjects handles GET /admin/projects.
func (h *Handler) AdminListProjects(c *gin.Context) {
	q, ok := h.bindListQuery(c)
	if !ok {
		return
	}

	filter := domain.LeadFilter{
		Status:    parseOptionalStatus(q.Status),
		City:      strings.TrimSpace(q.City),
		SectorIDs: splitValues(q.SectorIDs),
	}
	page, err := h.query.AdminList(c.Request.Context(), filter, pageRequest(q.Page, q.PageSize, q.Limit))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toLeadPage(page))
}

// AdminUpdateProject handles PATCH /admin/projects/:id.
func (h *Handler) AdminUpdateProject(c *gin.Context) {
	leadID, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.AdminUpdateProjectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	update := domain.AdminUpdate{Status: parseOptionalStatus(deref(req.Status))}
	if req.PriceCents.Set {
		if req.PriceCents.Value == nil {
			update.ClearPrice = true
		} else {
			update.PriceCents = req.PriceCents.Value
		}
	}

	lead, err := h.management.Update(c.Request.Context(), leadID, update)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toLeadResponse(leadView(lead)))
}

// AdminDeleteProject handles DELETE /admin/projects/:id.
func (h *Handler) AdminDeleteProject(c *gin.Context) {
	leadID, ok := parseID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.management.Delete(c.Request.Context(), leadID)) {
		return
	}

	c.Status(http.StatusNoContent)
}

// AdminStats handles GET /admin/stats.
func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.management.Stats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.StatsResponse{
		TotalLeads:     stats.TotalLeads,
		SoldLeads:      stats.SoldLeads,
		ActiveArtisans: stats.ActiveArtisans,
		RevenueCents:   stats.RevenueCents,
	})
}

// AdminListTransactions handles GET /admin/transactions.
func (h *Handler) AdminListTransactions(c *gin.Context) {
	var q transport.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, codeValidation, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, codeValidation, msgValidationFailed, validator.Describe(err))
		return
	}

	filter := domain.TransactionFilter{ArtisanEmail: strings.TrimSpace(q.Email)}
	if q.Status != "" {
		status := domain.TransactionStatus(q.Status)
		filter.Status = &status
	}

	page, err := h.management.ListTransactions(c.Request.Context(), filter, pageRequest(q.Page, q.PageSize, q.Limit))
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.TransactionResponse, 0, len(page.Items))
	for _, tx := range page.Items {
		items = append(items, toTransactionResponse(tx))
	}
	httpkit.OK(c, transport.PageResponse[transport.TransactionResponse]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
	})
}

// AdminRefundTransaction handles POST /admin/transactions/:id/refund.
func (h *Handler) AdminRefundTransaction(c *gin.Context) {
	txID, ok := parseID(c)
	if !ok {
		return
	}

	tx, err := h.management.Refund(c.Request.Context(), txID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toTransactionResponse(domain.TransactionView{Transaction: tx}))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
