package handler

import (
	"leadmarket_backend/internal/leads/domain"
	"leadmarket_backend/internal/leads/query"
	"leadmarket_backend/internal/leads/transport"
)

func leadView(l domain.Lead) query.LeadView {
	return query.LeadView{Lead: l}
}

func toLeadResponse(v query.LeadView) transport.LeadResponse {
	resp := transport.LeadResponse{
		ID:           v.ID,
		ClientID:     v.ClientID,
		Title:        v.Title,
		Description:  v.Description,
		City:         v.City,
		SectorIDs:    v.SectorIDs,
		Status:       string(v.Status),
		PriceCents:   v.PriceCents,
		ClaimantID:   v.ClaimantID,
		ThumbnailURL: v.ThumbnailURL,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
	if resp.SectorIDs == nil {
		resp.SectorIDs = []string{}
	}
	if v.Client != nil {
		resp.Client = &transport.ClientSummaryResponse{
			ID:        v.Client.ID,
			FirstName: v.Client.FirstName,
			LastName:  v.Client.LastName,
			City:      v.Client.City,
		}
	}
	return resp
}

func toLeadPage(p domain.Page[query.LeadView]) transport.PageResponse[transport.LeadResponse] {
	items := make([]transport.LeadResponse, 0, len(p.Items))
	for _, v := range p.Items {
		items = append(items, toLeadResponse(v))
	}
	return transport.PageResponse[transport.LeadResponse]{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: p.TotalCount,
	}
}

func toTransactionResponse(tx domain.TransactionView) transport.TransactionResponse {
	return transport.TransactionResponse{
		ID:          tx.ID,
		UserID:      tx.UserID,
		LeadID:      tx.LeadID,
		LeadTitle:   tx.LeadTitle,
		PayerEmail:  tx.PayerEmail,
		AmountCents: tx.AmountCents,
		Type:        string(tx.Type),
		Status:      string(tx.Status),
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}
