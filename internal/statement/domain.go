package statement

import "github.com/thinq-erp/consol/internal/ledger"

// Statement identifiers.
const (
	StatementBalanceSheet = "BS"
	StatementProfitLoss   = "PL"
	StatementCashFlow     = "CF"
)

// Balance sheet and P&L sections.
const (
	SectionAssets      = "ASSETS"
	SectionLiabilities = "LIABILITIES"
	SectionEquity      = "EQUITY"
	SectionRevenue     = "REVENUE"
	SectionExpenses    = "EXPENSES"
	SectionOther       = "OTHER"
)

// Cash flow sections.
const (
	SectionOperating = "OPERATING"
	SectionInvesting = "INVESTING"
	SectionFinancing = "FINANCING"
)

// Row is one consolidated output line. Statement, Section and Amount stay
// zero-valued on the raw matrix and are filled by a normalization pass.
type Row struct {
	EntityID      int64                `json:"entity_id"`
	EntityCode    string               `json:"entity_code"`
	EntityName    string               `json:"entity_name"`
	AccountID     int64                `json:"account_id"`
	AccountCode   string               `json:"account_code"`
	AccountName   string               `json:"account_name"`
	InternalGroup ledger.InternalGroup `json:"internal_group"`
	Debit         float64              `json:"debit"`
	Credit        float64              `json:"credit"`
	Balance       float64              `json:"balance"`
	Statement     string               `json:"statement,omitempty"`
	Section       string               `json:"section,omitempty"`
	Amount        float64              `json:"amount"`
}

// MatrixCell is the flattened (entity, account, net amount) view consumed by
// the report endpoint.
type MatrixCell struct {
	EntityID    int64   `json:"entity_id"`
	EntityName  string  `json:"entity_name"`
	AccountID   int64   `json:"account_id"`
	AccountCode string  `json:"account_code"`
	AccountName string  `json:"account_name"`
	Amount      float64 `json:"amount"`
}

// CashflowMapping assigns an account or tag to a cash flow section with an
// optional direction flip. Exactly one of AccountID/TagID is set; the pair
// is unique per target.
type CashflowMapping struct {
	AccountID int64
	TagID     int64
	Section   string
	Sign      int
}
