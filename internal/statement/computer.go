package statement

import (
	"math"
	"sort"

	"github.com/thinq-erp/consol/internal/ledger"
)

// matrixEpsilon filters accumulation noise out of the flattened matrix.
const matrixEpsilon = 1e-8

// BuildRows turns an aggregation bucket into raw consolidated rows enriched
// with entity and account metadata. Statement, section and amount are left
// for the normalization passes. Output order is deterministic.
func BuildRows(bucket map[ledger.Key]ledger.Sum, accounts map[int64]ledger.AccountInfo, entities map[int64]ledger.EntityInfo) []Row {
	rows := make([]Row, 0, len(bucket))
	for key, sum := range bucket {
		row := Row{
			EntityID:      key.EntityID,
			AccountID:     key.AccountID,
			InternalGroup: ledger.GroupOther,
			Debit:         sum.Debit,
			Credit:        sum.Credit,
			Balance:       sum.Balance,
		}
		if e, ok := entities[key.EntityID]; ok {
			row.EntityCode = e.Code
			row.EntityName = e.Name
		}
		if a, ok := accounts[key.AccountID]; ok {
			row.AccountCode = a.Code
			row.AccountName = a.Name
			if a.InternalGroup != "" {
				row.InternalGroup = a.InternalGroup
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EntityID != rows[j].EntityID {
			return rows[i].EntityID < rows[j].EntityID
		}
		return rows[i].AccountID < rows[j].AccountID
	})
	return rows
}

// BalanceSheet classifies rows into ASSETS/LIABILITIES/EQUITY and flips the
// sign of credit-heavy groups so every section reads as a positive
// magnitude. With balance = debit - credit the identity
// ASSETS - LIABILITIES - EQUITY = 0 holds for any balanced trial balance.
func BalanceSheet(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		r.Statement = StatementBalanceSheet
		switch r.InternalGroup {
		case ledger.GroupAsset:
			r.Section = SectionAssets
			r.Amount = r.Balance
		case ledger.GroupLiability:
			r.Section = SectionLiabilities
			r.Amount = -r.Balance
		case ledger.GroupEquity:
			r.Section = SectionEquity
			r.Amount = -r.Balance
		default:
			r.Section = SectionOther
			r.Amount = r.Balance
		}
		out[i] = r
	}
	return out
}

// ProfitLoss classifies rows into REVENUE/EXPENSES. Income accounts are
// credit-heavy, so revenue is presented as -balance.
func ProfitLoss(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		r.Statement = StatementProfitLoss
		r.Section, r.Amount = plSectionAmount(r)
		out[i] = r
	}
	return out
}

func plSectionAmount(r Row) (string, float64) {
	switch r.InternalGroup {
	case ledger.GroupIncome:
		return SectionRevenue, -r.Balance
	case ledger.GroupExpense:
		return SectionExpenses, r.Balance
	default:
		return SectionOther, r.Balance
	}
}

// CashFlow sections rows via the configured mapping and applies its sign on
// top of the P&L base amount.
func CashFlow(rows []Row, resolver *SectionResolver, accounts map[int64]ledger.AccountInfo) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		r.Statement = StatementCashFlow
		_, base := plSectionAmount(r)
		section, sign := resolver.Resolve(accounts[r.AccountID])
		r.Section = section
		r.Amount = base * float64(sign)
		out[i] = r
	}
	return out
}

// Flatten produces the (entity, account, net amount) matrix view, dropping
// cells below the noise threshold.
func Flatten(rows []Row) []MatrixCell {
	cells := make([]MatrixCell, 0, len(rows))
	for _, r := range rows {
		if math.Abs(r.Balance) < matrixEpsilon {
			continue
		}
		cells = append(cells, MatrixCell{
			EntityID:    r.EntityID,
			EntityName:  r.EntityName,
			AccountID:   r.AccountID,
			AccountCode: r.AccountCode,
			AccountName: r.AccountName,
			Amount:      r.Balance,
		})
	}
	return cells
}
