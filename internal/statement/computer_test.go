package statement

import (
	"math"
	"testing"

	"github.com/thinq-erp/consol/internal/ledger"
)

func row(entity, account int64, group ledger.InternalGroup, balance float64) Row {
	return Row{EntityID: entity, AccountID: account, InternalGroup: group, Balance: balance}
}

func TestBuildRowsEnrichesAndOrders(t *testing.T) {
	bucket := map[ledger.Key]ledger.Sum{
		{EntityID: 2, AccountID: 10}: {Debit: 100, Balance: 100},
		{EntityID: 1, AccountID: 20}: {Credit: 50, Balance: -50},
		{EntityID: 1, AccountID: 10}: {Debit: 30, Balance: 30},
	}
	accounts := map[int64]ledger.AccountInfo{
		10: {ID: 10, Code: "1100", Name: "Trade Receivables", InternalGroup: ledger.GroupAsset},
	}
	entities := map[int64]ledger.EntityInfo{
		1: {ID: 1, Name: "Alpha", Code: "K001"},
	}

	rows := BuildRows(bucket, accounts, entities)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].EntityID != 1 || rows[0].AccountID != 10 {
		t.Fatalf("unexpected order: %+v", rows[0])
	}
	if rows[0].EntityCode != "K001" || rows[0].AccountCode != "1100" {
		t.Fatalf("metadata not joined: %+v", rows[0])
	}
	if rows[0].InternalGroup != ledger.GroupAsset {
		t.Fatalf("expected asset group, got %s", rows[0].InternalGroup)
	}
	// Unknown account falls back to the other group.
	if rows[1].InternalGroup != ledger.GroupOther {
		t.Fatalf("expected other group for unmapped account, got %s", rows[1].InternalGroup)
	}
}

func TestBalanceSheetSectionsAndSigns(t *testing.T) {
	rows := BalanceSheet([]Row{
		row(1, 10, ledger.GroupAsset, 1000),
		row(1, 20, ledger.GroupLiability, -600),
		row(1, 30, ledger.GroupEquity, -400),
		row(1, 40, ledger.GroupOther, 25),
	})
	want := []struct {
		section string
		amount  float64
	}{
		{SectionAssets, 1000},
		{SectionLiabilities, 600},
		{SectionEquity, 400},
		{SectionOther, 25},
	}
	for i, w := range want {
		if rows[i].Statement != StatementBalanceSheet {
			t.Fatalf("row %d statement = %s", i, rows[i].Statement)
		}
		if rows[i].Section != w.section || rows[i].Amount != w.amount {
			t.Fatalf("row %d = (%s, %v), want (%s, %v)", i, rows[i].Section, rows[i].Amount, w.section, w.amount)
		}
	}
}

func TestBalanceSheetIdentityHoldsForBalancedTrialBalance(t *testing.T) {
	// Debits equal credits across the tree, so after normalization
	// ASSETS - LIABILITIES - EQUITY must vanish.
	rows := BalanceSheet([]Row{
		row(1, 10, ledger.GroupAsset, 900),
		row(2, 11, ledger.GroupAsset, 350),
		row(1, 20, ledger.GroupLiability, -500),
		row(2, 21, ledger.GroupLiability, -250),
		row(1, 30, ledger.GroupEquity, -500),
	})
	var assets, liabilities, equity float64
	for _, r := range rows {
		switch r.Section {
		case SectionAssets:
			assets += r.Amount
		case SectionLiabilities:
			liabilities += r.Amount
		case SectionEquity:
			equity += r.Amount
		}
	}
	if diff := assets - liabilities - equity; math.Abs(diff) > 1e-6 {
		t.Fatalf("identity violated: assets=%v liabilities=%v equity=%v diff=%v", assets, liabilities, equity, diff)
	}
}

func TestProfitLossNormalization(t *testing.T) {
	rows := ProfitLoss([]Row{
		row(1, 40, ledger.GroupIncome, -1000),
		row(1, 50, ledger.GroupExpense, 400),
	})
	if rows[0].Section != SectionRevenue || rows[0].Amount != 1000 {
		t.Fatalf("income row = (%s, %v), want (REVENUE, 1000)", rows[0].Section, rows[0].Amount)
	}
	if rows[1].Section != SectionExpenses || rows[1].Amount != 400 {
		t.Fatalf("expense row = (%s, %v), want (EXPENSES, 400)", rows[1].Section, rows[1].Amount)
	}
}

func TestCashFlowAppliesMappingAndSign(t *testing.T) {
	accounts := map[int64]ledger.AccountInfo{
		40: {ID: 40, InternalGroup: ledger.GroupIncome},
		50: {ID: 50, InternalGroup: ledger.GroupExpense, TagIDs: []int64{7}},
		60: {ID: 60, InternalGroup: ledger.GroupOther},
	}
	resolver := NewSectionResolver([]CashflowMapping{
		{AccountID: 40, Section: SectionInvesting, Sign: -1},
		{TagID: 7, Section: SectionFinancing, Sign: 1},
	})

	rows := CashFlow([]Row{
		row(1, 40, ledger.GroupIncome, -500),
		row(1, 50, ledger.GroupExpense, 120),
		row(1, 60, ledger.GroupOther, 80),
	}, resolver, accounts)

	// base = -(-500) = 500, sign -1 => -500
	if rows[0].Section != SectionInvesting || rows[0].Amount != -500 {
		t.Fatalf("mapped account row = (%s, %v), want (INVESTING, -500)", rows[0].Section, rows[0].Amount)
	}
	if rows[1].Section != SectionFinancing || rows[1].Amount != 120 {
		t.Fatalf("tag mapped row = (%s, %v), want (FINANCING, 120)", rows[1].Section, rows[1].Amount)
	}
	if rows[2].Section != SectionOperating || rows[2].Amount != 80 {
		t.Fatalf("unmapped row = (%s, %v), want (OPERATING, 80)", rows[2].Section, rows[2].Amount)
	}
}

func TestFlattenDropsNoise(t *testing.T) {
	cells := Flatten([]Row{
		row(1, 10, ledger.GroupAsset, 100),
		row(1, 20, ledger.GroupAsset, 1e-9),
	})
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(cells))
	}
	if cells[0].Amount != 100 {
		t.Fatalf("cell amount = %v", cells[0].Amount)
	}
}
