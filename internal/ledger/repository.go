package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thinq-erp/consol/internal/platform/db"
)

// Repository reads the ledger feed and master data. All queries are
// read-only; this engine never writes ledger lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a ledger repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.EntityID, &l.AccountID, &l.Debit, &l.Credit, &l.Balance, &l.Date, &l.CounterpartyID); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const postedLinesQuery = `
SELECT id, entity_id, account_id, debit, credit, debit - credit, line_date, COALESCE(counterparty_partner_id, 0)
FROM ledger_lines
WHERE posted
  AND entity_id = ANY($1)
  AND line_date BETWEEN $2 AND $3
ORDER BY id`

const postedEliminationLinesQuery = `
SELECT el.id, el.entity_id, el.account_id, el.debit, el.credit, el.debit - el.credit, ee.entry_date, 0
FROM elimination_lines el
JOIN elimination_entries ee ON ee.id = el.entry_id
WHERE ee.state = 'posted'
  AND el.entity_id = ANY($1)
  AND ee.entry_date BETWEEN $2 AND $3
ORDER BY el.id`

// FeedSnapshot returns posted ledger lines and, when asked, the lines of
// posted elimination entries for the entity set and range. Both reads run in
// one RepeatableRead transaction so an entry posted mid-call cannot show up
// in one feed without its offsetting side in the other. Draft and cancelled
// entries never reach aggregation.
func (r *Repository) FeedSnapshot(ctx context.Context, entityIDs []int64, from, to time.Time, includeElimination bool) ([]Line, []Line, error) {
	if r == nil || r.pool == nil {
		return nil, nil, fmt.Errorf("ledger repo not initialised")
	}
	if len(entityIDs) == 0 {
		return nil, nil, nil
	}
	var lines, elimLines []Line
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, postedLinesQuery, entityIDs, from, to)
		if err != nil {
			return err
		}
		if lines, err = scanLines(rows); err != nil {
			return err
		}
		if !includeElimination {
			return nil
		}
		rows, err = tx.Query(ctx, postedEliminationLinesQuery, entityIDs, from, to)
		if err != nil {
			return err
		}
		elimLines, err = scanLines(rows)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return lines, elimLines, nil
}

// IntercompanyLines returns posted receivable/payable lines with a known
// counterparty and a non-zero balance, the raw material for elimination
// matching.
func (r *Repository) IntercompanyLines(ctx context.Context, entityIDs []int64, from, to time.Time) ([]Line, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("ledger repo not initialised")
	}
	if len(entityIDs) == 0 {
		return nil, nil
	}
	const query = `
SELECT ll.id, ll.entity_id, ll.account_id, ll.debit, ll.credit, ll.debit - ll.credit, ll.line_date, ll.counterparty_partner_id
FROM ledger_lines ll
JOIN accounts a ON a.id = ll.account_id
WHERE ll.posted
  AND ll.entity_id = ANY($1)
  AND ll.line_date BETWEEN $2 AND $3
  AND a.account_type IN ('asset_receivable', 'liability_payable')
  AND ll.debit - ll.credit <> 0
  AND ll.counterparty_partner_id IS NOT NULL
ORDER BY ll.id`
	rows, err := r.pool.Query(ctx, query, entityIDs, from, to)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

// AccountsByIDs fetches accounts-master metadata for the given ids. The map
// is built fresh per call; callers keep it request-scoped.
func (r *Repository) AccountsByIDs(ctx context.Context, accountIDs []int64) (map[int64]AccountInfo, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("ledger repo not initialised")
	}
	accounts := make(map[int64]AccountInfo, len(accountIDs))
	if len(accountIDs) == 0 {
		return accounts, nil
	}
	const query = `
SELECT a.id, a.code, a.name, a.internal_group,
       COALESCE(array_agg(t.tag_id) FILTER (WHERE t.tag_id IS NOT NULL), '{}')
FROM accounts a
LEFT JOIN account_tags t ON t.account_id = a.id
WHERE a.id = ANY($1)
GROUP BY a.id, a.code, a.name, a.internal_group`
	rows, err := r.pool.Query(ctx, query, accountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var info AccountInfo
		var group string
		if err := rows.Scan(&info.ID, &info.Code, &info.Name, &group, &info.TagIDs); err != nil {
			return nil, err
		}
		info.InternalGroup = InternalGroup(group)
		accounts[info.ID] = info
	}
	return accounts, rows.Err()
}

// EntitiesByIDs fetches entity-master rows, including the partner reference
// used for intercompany matching.
func (r *Repository) EntitiesByIDs(ctx context.Context, entityIDs []int64) (map[int64]EntityInfo, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("ledger repo not initialised")
	}
	entities := make(map[int64]EntityInfo, len(entityIDs))
	if len(entityIDs) == 0 {
		return entities, nil
	}
	const query = `
SELECT id, name, COALESCE(entity_code, ''), COALESCE(partner_id, 0), currency
FROM entities
WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, entityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e EntityInfo
		if err := rows.Scan(&e.ID, &e.Name, &e.Code, &e.PartnerID, &e.Currency); err != nil {
			return nil, err
		}
		entities[e.ID] = e
	}
	return entities, rows.Err()
}
