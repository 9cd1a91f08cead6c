package consol

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/thinq-erp/consol/internal/elimination"
	"github.com/thinq-erp/consol/internal/ledger"
	"github.com/thinq-erp/consol/internal/statement"
)

// balancedTolerance is the rounding slack allowed before a balance sheet is
// flagged as out of balance.
const balancedTolerance = 0.01

// Filters scope one report computation.
type Filters struct {
	RootEntityID       int64     `json:"root_entity_id"`
	DateFrom           time.Time `json:"date_from"`
	DateTo             time.Time `json:"date_to"`
	IncludeElimination bool      `json:"include_elimination"`
}

// Validate rejects unusable filter combinations.
func (f Filters) Validate() error {
	if f.RootEntityID <= 0 {
		return fmt.Errorf("consol: root entity required")
	}
	if f.DateFrom.IsZero() || f.DateTo.IsZero() {
		return fmt.Errorf("consol: period bounds required")
	}
	if f.DateTo.Before(f.DateFrom) {
		return fmt.Errorf("consol: period end %s precedes start %s",
			f.DateTo.Format("2006-01-02"), f.DateFrom.Format("2006-01-02"))
	}
	return nil
}

// Report is one normalized consolidated statement.
type Report struct {
	Filters       Filters            `json:"filters"`
	Statement     string             `json:"statement"`
	Entities      []int64            `json:"entities"`
	Rows          []statement.Row    `json:"rows"`
	SectionTotals map[string]float64 `json:"section_totals"`
	Balanced      bool               `json:"balanced,omitempty"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// MatrixReport is the flattened raw consolidation view.
type MatrixReport struct {
	Filters     Filters                `json:"filters"`
	Entities    []int64                `json:"entities"`
	Cells       []statement.MatrixCell `json:"cells"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// TreeResolver resolves the effective consolidation tree.
type TreeResolver interface {
	Descendants(ctx context.Context, root int64, at time.Time, includeSelf bool) ([]int64, error)
}

// BucketSource reduces posted movements into (entity, account) buckets.
type BucketSource interface {
	Aggregate(ctx context.Context, entityIDs []int64, from, to time.Time, includeElimination bool) (map[ledger.Key]ledger.Sum, error)
}

// MetaReader fetches the master data a report enriches its rows with.
type MetaReader interface {
	AccountsByIDs(ctx context.Context, accountIDs []int64) (map[int64]ledger.AccountInfo, error)
	EntitiesByIDs(ctx context.Context, entityIDs []int64) (map[int64]ledger.EntityInfo, error)
}

// MappingSource provides the cash flow section configuration.
type MappingSource interface {
	CashflowMappings(ctx context.Context) ([]statement.CashflowMapping, error)
}

// EliminationGenerator drafts intercompany elimination entries.
type EliminationGenerator interface {
	Generate(ctx context.Context, owner int64, from, to time.Time) (elimination.GenerateResult, error)
}

// Service is the consolidation facade: it resolves the tree, aggregates the
// feed and runs the normalization pass the caller asked for. It holds no
// state between calls; account and entity lookups stay request-scoped.
type Service struct {
	tree     TreeResolver
	buckets  BucketSource
	meta     MetaReader
	mappings MappingSource
	elim     EliminationGenerator
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the consolidation facade.
func NewService(tree TreeResolver, buckets BucketSource, meta MetaReader, mappings MappingSource, elim EliminationGenerator, logger *slog.Logger) *Service {
	return &Service{
		tree:     tree,
		buckets:  buckets,
		meta:     meta,
		mappings: mappings,
		elim:     elim,
		logger:   logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if s != nil && clock != nil {
		s.now = clock
	}
}

// Descendants exposes tree resolution on the facade.
func (s *Service) Descendants(ctx context.Context, root int64, at time.Time) ([]int64, error) {
	if s == nil || s.tree == nil {
		return nil, fmt.Errorf("consol service not initialised")
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.tree.Descendants(ctx, root, at, true)
}

// ComputeRawMatrix builds the flattened (entity, account, amount) view.
func (s *Service) ComputeRawMatrix(ctx context.Context, filter Filters) (MatrixReport, error) {
	entities, rows, err := s.buildRows(ctx, filter)
	if err != nil {
		return MatrixReport{}, err
	}
	return MatrixReport{
		Filters:     filter,
		Entities:    entities,
		Cells:       statement.Flatten(rows),
		GeneratedAt: s.now(),
	}, nil
}

// ComputeBalanceSheet builds the consolidated balance sheet.
func (s *Service) ComputeBalanceSheet(ctx context.Context, filter Filters) (Report, error) {
	entities, rows, err := s.buildRows(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	report := s.newReport(filter, statement.StatementBalanceSheet, entities, statement.BalanceSheet(rows))
	diff := report.SectionTotals[statement.SectionAssets] -
		report.SectionTotals[statement.SectionLiabilities] -
		report.SectionTotals[statement.SectionEquity] +
		report.SectionTotals[statement.SectionOther]
	report.Balanced = math.Abs(diff) <= balancedTolerance
	if !report.Balanced {
		s.log().Warn("balance sheet out of balance",
			slog.Int64("root_id", filter.RootEntityID),
			slog.Float64("difference", diff))
	}
	return report, nil
}

// ComputeProfitLoss builds the consolidated profit and loss statement.
func (s *Service) ComputeProfitLoss(ctx context.Context, filter Filters) (Report, error) {
	entities, rows, err := s.buildRows(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	return s.newReport(filter, statement.StatementProfitLoss, entities, statement.ProfitLoss(rows)), nil
}

// ComputeCashFlow builds the consolidated cash flow statement using the
// configured section mapping.
func (s *Service) ComputeCashFlow(ctx context.Context, filter Filters) (Report, error) {
	entities, rows, err := s.buildRows(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	if s.mappings == nil {
		return Report{}, fmt.Errorf("consol: cash flow mapping source not configured")
	}
	mappings, err := s.mappings.CashflowMappings(ctx)
	if err != nil {
		return Report{}, err
	}
	accountIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		accountIDs = append(accountIDs, r.AccountID)
	}
	accounts, err := s.meta.AccountsByIDs(ctx, accountIDs)
	if err != nil {
		return Report{}, err
	}
	resolver := statement.NewSectionResolver(mappings)
	return s.newReport(filter, statement.StatementCashFlow, entities, statement.CashFlow(rows, resolver, accounts)), nil
}

// GenerateEliminations drafts the intercompany AR/AP elimination entry for
// the owner and period.
func (s *Service) GenerateEliminations(ctx context.Context, owner int64, from, to time.Time) (elimination.GenerateResult, error) {
	if s == nil || s.elim == nil {
		return elimination.GenerateResult{}, fmt.Errorf("consol service not initialised")
	}
	return s.elim.Generate(ctx, owner, from, to)
}

func (s *Service) buildRows(ctx context.Context, filter Filters) ([]int64, []statement.Row, error) {
	if s == nil || s.tree == nil || s.buckets == nil || s.meta == nil {
		return nil, nil, fmt.Errorf("consol service not initialised")
	}
	if err := filter.Validate(); err != nil {
		return nil, nil, err
	}

	entityIDs, err := s.tree.Descendants(ctx, filter.RootEntityID, filter.DateTo, true)
	if err != nil {
		return nil, nil, err
	}
	bucket, err := s.buckets.Aggregate(ctx, entityIDs, filter.DateFrom, filter.DateTo, filter.IncludeElimination)
	if err != nil {
		return nil, nil, err
	}

	accountIDs := make([]int64, 0, len(bucket))
	seen := make(map[int64]struct{}, len(bucket))
	for key := range bucket {
		if _, ok := seen[key.AccountID]; ok {
			continue
		}
		seen[key.AccountID] = struct{}{}
		accountIDs = append(accountIDs, key.AccountID)
	}
	accounts, err := s.meta.AccountsByIDs(ctx, accountIDs)
	if err != nil {
		return nil, nil, err
	}
	entities, err := s.meta.EntitiesByIDs(ctx, entityIDs)
	if err != nil {
		return nil, nil, err
	}
	return entityIDs, statement.BuildRows(bucket, accounts, entities), nil
}

func (s *Service) newReport(filter Filters, stmt string, entities []int64, rows []statement.Row) Report {
	totals := make(map[string]float64, 4)
	for _, r := range rows {
		totals[r.Section] += r.Amount
	}
	return Report{
		Filters:       filter,
		Statement:     stmt,
		Entities:      entities,
		Rows:          rows,
		SectionTotals: totals,
		GeneratedAt:   s.now(),
	}
}

func (s *Service) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger.With(slog.String("component", "consol"))
	}
	return slog.Default().With(slog.String("component", "consol"))
}
