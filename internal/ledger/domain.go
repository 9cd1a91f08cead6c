package ledger

import "time"

// Line is one posted ledger movement as read from the ledger feed.
// Balance always equals Debit - Credit; queries enforce it on the way in.
type Line struct {
	ID             int64
	EntityID       int64
	AccountID      int64
	Debit          float64
	Credit         float64
	Balance        float64
	Date           time.Time
	CounterpartyID int64 // partner reference on the line, 0 when absent
}

// InternalGroup is the accounting classification of an account.
type InternalGroup string

const (
	GroupAsset     InternalGroup = "asset"
	GroupLiability InternalGroup = "liability"
	GroupEquity    InternalGroup = "equity"
	GroupIncome    InternalGroup = "income"
	GroupExpense   InternalGroup = "expense"
	GroupOther     InternalGroup = "other"
)

// AccountInfo carries the accounts-master metadata consumed downstream.
type AccountInfo struct {
	ID            int64
	Code          string
	Name          string
	InternalGroup InternalGroup
	TagIDs        []int64
}

// EntityInfo carries the entity-master fields needed for consolidation.
type EntityInfo struct {
	ID        int64
	Name      string
	Code      string
	PartnerID int64
	Currency  string
}

// Key buckets amounts per entity and account.
type Key struct {
	EntityID  int64
	AccountID int64
}

// Sum accumulates debit/credit/balance for one bucket.
type Sum struct {
	Debit   float64
	Credit  float64
	Balance float64
}
