package elimination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/thinq-erp/consol/internal/ledger"
	"github.com/thinq-erp/consol/internal/shared"
)

// pairEpsilon filters float accumulation noise out of pair sums.
const pairEpsilon = 1e-6

// AuditAction identifies audit log entries emitted by the generator.
const AuditAction = "elimination_generate"

// EntryStore describes the persistence operations required by the generator.
type EntryStore interface {
	ActiveRule(ctx context.Context, owningEntityID int64, ruleType string) (Rule, error)
	CreateEntry(ctx context.Context, entry Entry) (Entry, error)
}

// TreeResolver resolves the consolidation tree for an owner.
type TreeResolver interface {
	Descendants(ctx context.Context, root int64, at time.Time, includeSelf bool) ([]int64, error)
}

// LedgerReader provides the raw intercompany material.
type LedgerReader interface {
	IntercompanyLines(ctx context.Context, entityIDs []int64, from, to time.Time) ([]ledger.Line, error)
	EntitiesByIDs(ctx context.Context, entityIDs []int64) (map[int64]ledger.EntityInfo, error)
}

// AuditRecorder captures audit events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Generator detects intercompany AR/AP imbalances inside an owner's tree and
// drafts one balancing elimination entry per run.
type Generator struct {
	store   EntryStore
	tree    TreeResolver
	ledger  LedgerReader
	audit   AuditRecorder
	logger  *slog.Logger
	actorID int64
	now     func() time.Time
}

// GeneratorConfig configures optional behaviour for the generator.
type GeneratorConfig struct {
	ActorID int64
}

// NewGenerator wires required dependencies for the elimination generator.
func NewGenerator(store EntryStore, tree TreeResolver, reader LedgerReader, audit AuditRecorder, logger *slog.Logger, cfg GeneratorConfig) *Generator {
	gen := &Generator{
		store:  store,
		tree:   tree,
		ledger: reader,
		audit:  audit,
		logger: logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	if cfg.ActorID > 0 {
		gen.actorID = cfg.ActorID
	}
	return gen
}

// WithClock overrides the clock for deterministic tests.
func (g *Generator) WithClock(clock func() time.Time) {
	if g != nil && clock != nil {
		g.now = clock
	}
}

type pairKey struct {
	Src int64
	Dst int64
}

// Generate runs the AR/AP matching routine for the owner and period. Missing
// rule, empty tree and no qualifying pairs are quiet no-ops: the result
// carries a nil entry and no error. A rule without contra accounts skips its
// pairs and surfaces a warning instead of aborting the run.
func (g *Generator) Generate(ctx context.Context, owner int64, from, to time.Time) (GenerateResult, error) {
	if g == nil || g.store == nil || g.tree == nil || g.ledger == nil {
		return GenerateResult{}, fmt.Errorf("elimination generator not initialised")
	}
	if owner <= 0 {
		return GenerateResult{}, fmt.Errorf("elimination: owner entity required")
	}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return GenerateResult{}, fmt.Errorf("elimination: invalid period %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	result := GenerateResult{}

	rule, err := g.store.ActiveRule(ctx, owner, RuleIntercompanyARAP)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			g.log().Info("no active arap rule", slog.Int64("owner_id", owner))
			return result, nil
		}
		return result, err
	}

	treeIDs, err := g.tree.Descendants(ctx, owner, to, true)
	if err != nil {
		return result, err
	}
	if len(treeIDs) == 0 {
		return result, nil
	}

	entities, err := g.ledger.EntitiesByIDs(ctx, treeIDs)
	if err != nil {
		return result, err
	}
	partnerToEntity := make(map[int64]int64, len(entities))
	for id, e := range entities {
		if e.PartnerID != 0 {
			partnerToEntity[e.PartnerID] = id
		}
	}

	lines, err := g.ledger.IntercompanyLines(ctx, treeIDs, from, to)
	if err != nil {
		return result, err
	}
	if len(lines) == 0 {
		return result, nil
	}

	pairSum := make(map[pairKey]float64)
	var sourceIDs []int64
	for _, l := range lines {
		dst, ok := partnerToEntity[l.CounterpartyID]
		if !ok || dst == l.EntityID {
			continue
		}
		pairSum[pairKey{Src: l.EntityID, Dst: dst}] += l.Balance
		if l.ID != 0 {
			sourceIDs = append(sourceIDs, l.ID)
		}
	}

	keys := collapsePairs(pairSum)
	if len(keys) == 0 {
		return result, nil
	}

	entry := Entry{
		Reference:      uuid.NewString(),
		Name:           EntryName(from, to),
		OwningEntityID: owner,
		Date:           to,
		DateFrom:       from,
		DateTo:         to,
		State:          StateDraft,
		AutoGenerated:  true,
		RuleID:         rule.ID,
		SourceLineIDs:  sourceIDs,
	}

	for _, key := range keys {
		amount := pairSum[key]
		if !rule.HasContraARAP() {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("rule %d lacks contra AR/AP accounts, pair (%d,%d) skipped", rule.ID, key.Src, key.Dst))
			continue
		}
		label := fmt.Sprintf("Eliminate IC AR/AP between E%d and E%d (%s..%s)",
			key.Src, key.Dst, from.Format("2006-01-02"), to.Format("2006-01-02"))
		if amount > 0 {
			entry.Lines = append(entry.Lines,
				Line{EntityID: owner, AccountID: rule.ContraARAccount, Label: label, Credit: amount},
				Line{EntityID: owner, AccountID: rule.ContraAPAccount, Label: label, Debit: amount},
			)
		} else {
			entry.Lines = append(entry.Lines,
				Line{EntityID: owner, AccountID: rule.ContraARAccount, Label: label, Debit: -amount},
				Line{EntityID: owner, AccountID: rule.ContraAPAccount, Label: label, Credit: -amount},
			)
		}
		result.Pairs++
		result.TotalAmount += math.Abs(amount)
	}

	if len(entry.Lines) == 0 {
		// Nothing qualified: the empty entry is never persisted.
		return result, nil
	}

	created, err := g.store.CreateEntry(ctx, entry)
	if err != nil {
		return result, err
	}
	result.Entry = &created
	g.recordAudit(ctx, created, result)
	g.log().Info("drafted elimination entry",
		slog.Int64("owner_id", owner),
		slog.Int64("entry_id", created.ID),
		slog.Int("pairs", result.Pairs),
		slog.Float64("total_amount", result.TotalAmount))
	return result, nil
}

// collapsePairs reduces directional pair sums to one direction per entity
// pair. Both sides of a matched position book mirror-image balances, so when
// both directions clear the epsilon only the view of the lower entity id is
// kept; one-sided exposures pass through untouched. Output order is
// deterministic.
func collapsePairs(pairSum map[pairKey]float64) []pairKey {
	keys := make([]pairKey, 0, len(pairSum))
	for key, amount := range pairSum {
		if math.Abs(amount) <= pairEpsilon {
			continue
		}
		if key.Src > key.Dst {
			mirror := pairKey{Src: key.Dst, Dst: key.Src}
			if other, ok := pairSum[mirror]; ok && math.Abs(other) > pairEpsilon {
				continue
			}
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Src != keys[j].Src {
			return keys[i].Src < keys[j].Src
		}
		return keys[i].Dst < keys[j].Dst
	})
	return keys
}

func (g *Generator) recordAudit(ctx context.Context, entry Entry, result GenerateResult) {
	if g == nil || g.audit == nil {
		return
	}
	meta := map[string]any{
		"reference":   entry.Reference,
		"owner_id":    entry.OwningEntityID,
		"date_from":   entry.DateFrom.Format("2006-01-02"),
		"date_to":     entry.DateTo.Format("2006-01-02"),
		"pairs":       result.Pairs,
		"total":       result.TotalAmount,
		"actor":       "system/job",
		"recorded_at": g.now(),
	}
	_ = g.audit.Record(ctx, shared.AuditLog{
		ActorID:  g.actorID,
		Action:   AuditAction,
		Entity:   "elimination_entries",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
		At:       g.now(),
	})
}

func (g *Generator) log() *slog.Logger {
	if g != nil && g.logger != nil {
		return g.logger.With(slog.String("component", "elimination_generator"))
	}
	return slog.Default().With(slog.String("component", "elimination_generator"))
}
