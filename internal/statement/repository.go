package statement

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads statement configuration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a statement repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CashflowMappings returns the configured cash flow section assignments.
// Account mappings sort before tag mappings so first-wins resolution keeps
// account rules authoritative.
func (r *Repository) CashflowMappings(ctx context.Context) ([]CashflowMapping, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("statement repo not initialised")
	}
	const query = `
SELECT COALESCE(account_id, 0), COALESCE(tag_id, 0), section, sign
FROM cashflow_section_map
ORDER BY account_id NULLS LAST, tag_id NULLS LAST, id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mappings []CashflowMapping
	for rows.Next() {
		var m CashflowMapping
		if err := rows.Scan(&m.AccountID, &m.TagID, &m.Section, &m.Sign); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
