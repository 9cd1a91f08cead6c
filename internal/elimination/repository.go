package elimination

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thinq-erp/consol/internal/platform/db"
)

// Repository persists elimination rules, entries and lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs an elimination repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActiveRule returns the single active rule of the given type for the owner.
func (r *Repository) ActiveRule(ctx context.Context, owningEntityID int64, ruleType string) (Rule, error) {
	if r == nil || r.pool == nil {
		return Rule{}, fmt.Errorf("elimination repo not initialised")
	}
	const query = `
SELECT id, owning_entity_id, name, rule_type, active,
       COALESCE(contra_ar_account_id, 0),
       COALESCE(contra_ap_account_id, 0),
       COALESCE(contra_rev_account_id, 0),
       COALESCE(contra_cogs_account_id, 0)
FROM elimination_rules
WHERE owning_entity_id = $1 AND rule_type = $2 AND active
ORDER BY id
LIMIT 1`
	var rule Rule
	err := r.pool.QueryRow(ctx, query, owningEntityID, ruleType).Scan(
		&rule.ID, &rule.OwningEntityID, &rule.Name, &rule.RuleType, &rule.Active,
		&rule.ContraARAccount, &rule.ContraAPAccount, &rule.ContraRevAccount, &rule.ContraCOGAccount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrRuleNotFound
		}
		return Rule{}, err
	}
	return rule, nil
}

// ActiveRuleOwners lists entities carrying at least one active rule. The
// scheduled generate run iterates this set.
func (r *Repository) ActiveRuleOwners(ctx context.Context) ([]int64, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("elimination repo not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT owning_entity_id FROM elimination_rules WHERE active ORDER BY owning_entity_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// CreateEntry persists the entry with all of its lines and source references
// in one Serializable transaction: either everything lands or nothing does.
func (r *Repository) CreateEntry(ctx context.Context, entry Entry) (Entry, error) {
	if r == nil || r.pool == nil {
		return Entry{}, fmt.Errorf("elimination repo not initialised")
	}
	if len(entry.Lines) == 0 {
		return Entry{}, fmt.Errorf("elimination: entry requires lines")
	}
	if entry.State == "" {
		entry.State = StateDraft
	}

	err := db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		const insertEntry = `
INSERT INTO elimination_entries (reference, name, owning_entity_id, entry_date, date_from, date_to, state, auto_generated, rule_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0))
RETURNING id`
		if err := tx.QueryRow(ctx, insertEntry,
			entry.Reference, entry.Name, entry.OwningEntityID, entry.Date,
			entry.DateFrom, entry.DateTo, string(entry.State), entry.AutoGenerated, entry.RuleID,
		).Scan(&entry.ID); err != nil {
			return err
		}

		const insertSource = `INSERT INTO elimination_entry_sources (entry_id, ledger_line_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		for _, lineID := range entry.SourceLineIDs {
			if _, err := tx.Exec(ctx, insertSource, entry.ID, lineID); err != nil {
				return err
			}
		}

		const insertLine = `
INSERT INTO elimination_lines (entry_id, entity_id, account_id, label, debit, credit)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
		for i := range entry.Lines {
			entry.Lines[i].EntryID = entry.ID
			if err := tx.QueryRow(ctx, insertLine,
				entry.ID, entry.Lines[i].EntityID, entry.Lines[i].AccountID,
				entry.Lines[i].Label, entry.Lines[i].Debit, entry.Lines[i].Credit,
			).Scan(&entry.Lines[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// GetEntry fetches an entry with its lines and source references. The reads
// share one RepeatableRead snapshot so a concurrent state change cannot split
// the header from its lines.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	if r == nil || r.pool == nil {
		return Entry{}, fmt.Errorf("elimination repo not initialised")
	}
	var entry Entry
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
SELECT id, reference, name, owning_entity_id, entry_date, date_from, date_to, state, auto_generated, COALESCE(rule_id, 0)
FROM elimination_entries
WHERE id = $1`
		var state string
		err := tx.QueryRow(ctx, query, id).Scan(
			&entry.ID, &entry.Reference, &entry.Name, &entry.OwningEntityID,
			&entry.Date, &entry.DateFrom, &entry.DateTo, &state, &entry.AutoGenerated, &entry.RuleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrEntryNotFound
			}
			return err
		}
		entry.State = EntryState(state)

		rows, err := tx.Query(ctx, `
SELECT id, entry_id, entity_id, account_id, COALESCE(label, ''), debit, credit
FROM elimination_lines
WHERE entry_id = $1
ORDER BY id`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var l Line
			if err := rows.Scan(&l.ID, &l.EntryID, &l.EntityID, &l.AccountID, &l.Label, &l.Debit, &l.Credit); err != nil {
				return err
			}
			entry.Lines = append(entry.Lines, l)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		srcRows, err := tx.Query(ctx, `SELECT ledger_line_id FROM elimination_entry_sources WHERE entry_id = $1 ORDER BY ledger_line_id`, id)
		if err != nil {
			return err
		}
		defer srcRows.Close()
		for srcRows.Next() {
			var lineID int64
			if err := srcRows.Scan(&lineID); err != nil {
				return err
			}
			entry.SourceLineIDs = append(entry.SourceLineIDs, lineID)
		}
		return srcRows.Err()
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// UpdateState transitions an entry between lifecycle states. The current
// state is checked inside the update so a stale caller cannot skip a step.
func (r *Repository) UpdateState(ctx context.Context, id int64, from, to EntryState) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("elimination repo not initialised")
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE elimination_entries SET state = $1 WHERE id = $2 AND state = $3`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM elimination_entries WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrEntryNotFound
		}
		return ErrInvalidState
	}
	return nil
}
