package repository

import (
	"fmt"
	"strings"

	"leadmarket_backend/internal/leads/domain"
)

// buildLeadListWhere renders filter as a WHERE clause. It returns the clause,
// its arguments and the next free placeholder index.
func buildLeadListWhere(filter domain.LeadFilter) (string, []interface{}, int) {
	whereClauses := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	argIdx := 1

	add := func(format string, value interface{}) {
		whereClauses = append(whereClauses, fmt.Sprintf(format, argIdx))
		args = append(args, value)
		argIdx++
	}

	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.ClientID != nil {
		add("client_id = $%d", *filter.ClientID)
	}
	if city := strings.TrimSpace(filter.City); city != "" {
		add("city ILIKE $%d", "%"+escapeLike(city)+"%")
	}
	if len(filter.SectorIDs) > 0 {
		add("sector_ids && $%d", filter.SectorIDs)
	}
	if filter.IDs != nil {
		add("id = ANY($%d)", filter.IDs)
	}

	if len(whereClauses) == 0 {
		return "", args, argIdx
	}
	return "WHERE " + strings.Join(whereClauses, " AND "), args, argIdx
}

func limitOffset(argIdx int) string {
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
