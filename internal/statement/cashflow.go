package statement

import "github.com/thinq-erp/consol/internal/ledger"

// SectionResolver resolves the cash flow section and sign for an account.
// It is total: with no mapping the answer is OPERATING with sign +1.
type SectionResolver struct {
	byAccount map[int64]CashflowMapping
	byTag     map[int64]CashflowMapping
}

// NewSectionResolver indexes the configured mappings. Later duplicates for
// the same target are ignored; the unique constraint on the config table
// keeps them out in the first place.
func NewSectionResolver(mappings []CashflowMapping) *SectionResolver {
	r := &SectionResolver{
		byAccount: make(map[int64]CashflowMapping),
		byTag:     make(map[int64]CashflowMapping),
	}
	for _, m := range mappings {
		if m.Sign == 0 {
			m.Sign = 1
		}
		switch {
		case m.AccountID != 0:
			if _, ok := r.byAccount[m.AccountID]; !ok {
				r.byAccount[m.AccountID] = m
			}
		case m.TagID != 0:
			if _, ok := r.byTag[m.TagID]; !ok {
				r.byTag[m.TagID] = m
			}
		}
	}
	return r
}

// Resolve looks up the section and sign for an account: exact account match
// first, then the first matching tag, then the default.
func (r *SectionResolver) Resolve(account ledger.AccountInfo) (string, int) {
	if r == nil {
		return SectionOperating, 1
	}
	if m, ok := r.byAccount[account.ID]; ok {
		return m.Section, m.Sign
	}
	for _, tag := range account.TagIDs {
		if m, ok := r.byTag[tag]; ok {
			return m.Section, m.Sign
		}
	}
	return SectionOperating, 1
}
