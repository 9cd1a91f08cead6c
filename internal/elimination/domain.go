package elimination

import (
	"fmt"
	"time"

	"github.com/thinq-erp/consol/internal/shared"
)

// EntryState captures the lifecycle of an elimination entry.
type EntryState string

const (
	// StateDraft indicates the entry exists but is excluded from aggregation.
	StateDraft EntryState = "draft"
	// StatePosted indicates the entry contributes to consolidated figures.
	StatePosted EntryState = "posted"
	// StateCancelled indicates the entry is retired.
	StateCancelled EntryState = "cancelled"
)

// Rule types. Only intercompany AR/AP is executed by the generator; the
// remaining types are stored configuration for future rules.
const (
	RuleIntercompanyARAP    = "intercompany_arap"
	RuleIntercompanyRevCOGS = "intercompany_rev_cogs"
	RuleIntercompanyLoans   = "intercompany_loans"
	RuleDividend            = "dividend"
	RuleInventoryProfit     = "inventory_up"
)

// Rule describes how to eliminate intercompany balances for an owning entity.
type Rule struct {
	ID               int64
	OwningEntityID   int64
	Name             string
	RuleType         string
	Active           bool
	ContraARAccount  int64
	ContraAPAccount  int64
	ContraRevAccount int64
	ContraCOGAccount int64
}

// HasContraARAP reports whether both AR/AP contra accounts are configured.
func (r Rule) HasContraARAP() bool {
	return r.ContraARAccount != 0 && r.ContraAPAccount != 0
}

// Entry is an adjustment booked only for consolidation purposes; it never
// touches standalone entity books.
type Entry struct {
	ID             int64
	Reference      string
	Name           string
	OwningEntityID int64
	Date           time.Time
	DateFrom       time.Time
	DateTo         time.Time
	State          EntryState
	AutoGenerated  bool
	RuleID         int64
	SourceLineIDs  []int64
	Lines          []Line
}

// Line belongs to exactly one entry and is immutable once the entry posts.
type Line struct {
	ID        int64
	EntryID   int64
	EntityID  int64
	AccountID int64
	Label     string
	Debit     float64
	Credit    float64
}

// Balance derives debit minus credit.
func (l Line) Balance() float64 {
	return l.Debit - l.Credit
}

// GenerateResult summarises a generator run. A nil Entry with no error means
// there was nothing to eliminate.
type GenerateResult struct {
	Entry       *Entry
	Pairs       int
	TotalAmount float64
	Warnings    []string
}

// ErrRuleNotFound occurs when no active rule exists for the owning entity.
var ErrRuleNotFound = fmt.Errorf("elimination: rule %w", shared.ErrNotFound)

// ErrEntryNotFound occurs when an entry lookup fails.
var ErrEntryNotFound = fmt.Errorf("elimination: entry %w", shared.ErrNotFound)

// ErrInvalidState indicates the requested lifecycle transition is not allowed.
var ErrInvalidState = fmt.Errorf("elimination: invalid state transition: %w", shared.ErrConflict)

// EntryName renders the conventional name for a generated AR/AP entry.
func EntryName(from, to time.Time) string {
	return fmt.Sprintf("EE Intercompany AR/AP %s - %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
}
