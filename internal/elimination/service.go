package elimination

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thinq-erp/consol/internal/shared"
)

// LifecycleStore describes the persistence needed for entry lifecycle moves.
type LifecycleStore interface {
	GetEntry(ctx context.Context, id int64) (Entry, error)
	UpdateState(ctx context.Context, id int64, from, to EntryState) error
}

// Service manages the elimination entry lifecycle. Allowed transitions:
// draft -> posted, posted -> cancelled, posted -> draft. Lines are immutable
// once the entry has posted; only posted entries feed aggregation.
type Service struct {
	store  LifecycleStore
	audit  AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs an elimination lifecycle service.
func NewService(store LifecycleStore, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		audit:  audit,
		logger: logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Get fetches an entry with lines.
func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	if s == nil || s.store == nil {
		return Entry{}, fmt.Errorf("elimination service not initialised")
	}
	return s.store.GetEntry(ctx, id)
}

// Post includes a draft entry in subsequent aggregation passes.
func (s *Service) Post(ctx context.Context, id, actorID int64) error {
	return s.transition(ctx, id, actorID, StateDraft, StatePosted, "elimination_post")
}

// Cancel retires a posted entry.
func (s *Service) Cancel(ctx context.Context, id, actorID int64) error {
	return s.transition(ctx, id, actorID, StatePosted, StateCancelled, "elimination_cancel")
}

// ResetToDraft excludes a posted entry from aggregation again.
func (s *Service) ResetToDraft(ctx context.Context, id, actorID int64) error {
	return s.transition(ctx, id, actorID, StatePosted, StateDraft, "elimination_reset")
}

func (s *Service) transition(ctx context.Context, id, actorID int64, from, to EntryState, action string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("elimination service not initialised")
	}
	if err := s.store.UpdateState(ctx, id, from, to); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   "elimination_entries",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"from": string(from), "to": string(to)},
			At:       s.now(),
		})
	}
	s.log().Info("elimination entry state changed",
		slog.Int64("entry_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
	return nil
}

func (s *Service) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger.With(slog.String("component", "elimination"))
	}
	return slog.Default().With(slog.String("component", "elimination"))
}
