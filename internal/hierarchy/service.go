package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thinq-erp/consol/internal/shared"
)

// LinkStore describes the persistence operations required by the service.
type LinkStore interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (Link, error)
	DeactivateLink(ctx context.Context, id int64) error
	ActiveLinksByParents(ctx context.Context, parentIDs []int64, at time.Time) ([]Link, error)
}

// AuditRecorder captures audit events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates link maintenance and hierarchy resolution.
type Service struct {
	store    LinkStore
	resolver *Resolver
	audit    AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a hierarchy service instance.
func NewService(store LinkStore, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		resolver: NewResolver(store),
		audit:    audit,
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

// CreateLink registers a parent->child link after integrity validation.
func (s *Service) CreateLink(ctx context.Context, input CreateLinkInput) (Link, error) {
	if s == nil || s.store == nil {
		return Link{}, fmt.Errorf("hierarchy service not initialised")
	}
	link, err := s.store.CreateLink(ctx, input)
	if err != nil {
		return Link{}, err
	}
	s.recordAudit(ctx, input.ActorID, "hierarchy_link_create", link)
	s.log().Info("hierarchy link created",
		slog.Int64("link_id", link.ID),
		slog.Int64("parent_id", link.ParentID),
		slog.Int64("child_id", link.ChildID))
	return link, nil
}

// DeactivateLink retires a link.
func (s *Service) DeactivateLink(ctx context.Context, id, actorID int64) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("hierarchy service not initialised")
	}
	if err := s.store.DeactivateLink(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "hierarchy_link_deactivate", Link{ID: id})
	return nil
}

// Descendants resolves the entity tree from root at the given date.
func (s *Service) Descendants(ctx context.Context, root int64, at time.Time, includeSelf bool) ([]int64, error) {
	if s == nil || s.resolver == nil {
		return nil, fmt.Errorf("hierarchy service not initialised")
	}
	if at.IsZero() {
		at = s.now()
	}
	return s.resolver.Descendants(ctx, root, at, includeSelf)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, link Link) {
	if s == nil || s.audit == nil {
		return
	}
	meta := map[string]any{
		"parent_id": link.ParentID,
		"child_id":  link.ChildID,
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "consol_links",
		EntityID: fmt.Sprintf("%d", link.ID),
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger.With(slog.String("component", "hierarchy"))
	}
	return slog.Default().With(slog.String("component", "hierarchy"))
}
