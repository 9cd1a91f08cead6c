package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thinq-erp/consol/internal/platform/db"
)

// Repository persists hierarchy links in consol_links.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a hierarchy repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectLink = `SELECT id, parent_id, child_id, date_from, date_to, active, COALESCE(note, '') FROM consol_links`

func scanLinks(rows pgx.Rows) ([]Link, error) {
	defer rows.Close()
	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.ParentID, &l.ChildID, &l.DateFrom, &l.DateTo, &l.Active, &l.Note); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ActiveLinks returns every active link regardless of effective dating.
func (r *Repository) ActiveLinks(ctx context.Context) ([]Link, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("hierarchy repo not initialised")
	}
	rows, err := r.pool.Query(ctx, selectLink+` WHERE active ORDER BY parent_id, child_id, date_from`)
	if err != nil {
		return nil, err
	}
	return scanLinks(rows)
}

// ActiveLinksByParents returns active links rooted at any of the given
// parents whose interval contains the date.
func (r *Repository) ActiveLinksByParents(ctx context.Context, parentIDs []int64, at time.Time) ([]Link, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("hierarchy repo not initialised")
	}
	if len(parentIDs) == 0 {
		return nil, nil
	}
	const query = selectLink + `
 WHERE active
   AND parent_id = ANY($1)
   AND date_from <= $2
   AND (date_to IS NULL OR date_to >= $2)
 ORDER BY parent_id, child_id`
	rows, err := r.pool.Query(ctx, query, parentIDs, at)
	if err != nil {
		return nil, err
	}
	return scanLinks(rows)
}

// CreateLink validates and inserts a link in a single Serializable
// transaction so concurrent creations cannot jointly produce an overlap or
// cycle against stale reads.
func (r *Repository) CreateLink(ctx context.Context, input CreateLinkInput) (Link, error) {
	if r == nil || r.pool == nil {
		return Link{}, fmt.Errorf("hierarchy repo not initialised")
	}
	if err := input.Validate(); err != nil {
		return Link{}, err
	}

	candidate := Link{
		ParentID: input.ParentID,
		ChildID:  input.ChildID,
		DateFrom: input.DateFrom,
		DateTo:   input.DateTo,
		Active:   true,
		Note:     input.Note,
	}

	err := db.WithSerializableTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectLink+` WHERE active`)
		if err != nil {
			return err
		}
		existing, err := scanLinks(rows)
		if err != nil {
			return err
		}
		if err := Validate(candidate, existing); err != nil {
			return err
		}
		const insert = `
INSERT INTO consol_links (parent_id, child_id, date_from, date_to, active, note)
VALUES ($1, $2, $3, $4, TRUE, NULLIF($5, ''))
RETURNING id`
		return tx.QueryRow(ctx, insert, candidate.ParentID, candidate.ChildID, candidate.DateFrom, candidate.DateTo, candidate.Note).Scan(&candidate.ID)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_consol_links_span" {
			return Link{}, ErrOverlap
		}
		return Link{}, err
	}
	return candidate, nil
}

// DeactivateLink retires a link without deleting its history.
func (r *Repository) DeactivateLink(ctx context.Context, id int64) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("hierarchy repo not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE consol_links SET active = FALSE WHERE id = $1 AND active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}
