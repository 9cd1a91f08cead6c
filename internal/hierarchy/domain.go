package hierarchy

import (
	"errors"
	"fmt"
	"time"

	"github.com/thinq-erp/consol/internal/shared"
)

// Link is a time-bounded parent->child ownership edge between entities.
// A nil DateTo means the link is open-ended.
type Link struct {
	ID       int64
	ParentID int64
	ChildID  int64
	DateFrom time.Time
	DateTo   *time.Time
	Active   bool
	Note     string
}

// ContainsDate reports whether the link interval covers the given date.
func (l Link) ContainsDate(at time.Time) bool {
	if at.Before(l.DateFrom) {
		return false
	}
	if l.DateTo != nil && at.After(*l.DateTo) {
		return false
	}
	return true
}

// Overlaps reports whether two link intervals share at least one instant.
func (l Link) Overlaps(other Link) bool {
	if other.DateTo != nil && other.DateTo.Before(l.DateFrom) {
		return false
	}
	if l.DateTo != nil && l.DateTo.Before(other.DateFrom) {
		return false
	}
	return true
}

// ErrSelfLink occurs when parent and child reference the same entity.
var ErrSelfLink = fmt.Errorf("hierarchy: parent and child must differ: %w", shared.ErrInvalidInput)

// ErrOverlap occurs when a child would have two parents at the same instant.
var ErrOverlap = fmt.Errorf("hierarchy: child already linked to a parent in the period: %w", shared.ErrConflict)

// ErrCycle occurs when a link would make an entity its own transitive ancestor.
var ErrCycle = fmt.Errorf("hierarchy: link would create a cycle: %w", shared.ErrInvalidInput)

// ErrLinkNotFound occurs when a link lookup fails.
var ErrLinkNotFound = fmt.Errorf("hierarchy: link %w", shared.ErrNotFound)

// CreateLinkInput captures fields necessary to register a link.
type CreateLinkInput struct {
	ParentID int64
	ChildID  int64
	DateFrom time.Time
	DateTo   *time.Time
	Note     string
	ActorID  int64
}

// Validate ensures the request is coherent before hitting the store.
func (in CreateLinkInput) Validate() error {
	if in.ParentID <= 0 || in.ChildID <= 0 {
		return errors.New("hierarchy: parent and child ids required")
	}
	if in.DateFrom.IsZero() {
		return errors.New("hierarchy: date_from required")
	}
	if in.DateTo != nil && in.DateTo.Before(in.DateFrom) {
		return errors.New("hierarchy: date_to precedes date_from")
	}
	return nil
}
