package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/thinq-erp/consol/internal/elimination"
	"github.com/thinq-erp/consol/internal/platform/httpx"
)

// GenerateService drafts elimination entries.
type GenerateService interface {
	GenerateEliminations(ctx context.Context, owner int64, from, to time.Time) (elimination.GenerateResult, error)
}

// LifecycleService moves elimination entries through their lifecycle.
type LifecycleService interface {
	Get(ctx context.Context, id int64) (elimination.Entry, error)
	Post(ctx context.Context, id, actorID int64) error
	Cancel(ctx context.Context, id, actorID int64) error
	ResetToDraft(ctx context.Context, id, actorID int64) error
}

// EliminationHandler wires the HTTP layer for elimination entries.
type EliminationHandler struct {
	logger    *slog.Logger
	generator GenerateService
	lifecycle LifecycleService
	cache     *reportCache
}

// NewEliminationHandler constructs the handler instance. The redis client is
// used to drop stale cached reports once an entry changes state.
func NewEliminationHandler(logger *slog.Logger, generator GenerateService, lifecycle LifecycleService, redisClient *redis.Client) *EliminationHandler {
	return &EliminationHandler{
		logger:    logger,
		generator: generator,
		lifecycle: lifecycle,
		cache:     newReportCache(redisClient, 0),
	}
}

// MountRoutes registers elimination endpoints.
func (h *EliminationHandler) MountRoutes(r chi.Router) {
	r.Post("/consol/eliminations/generate", h.HandleGenerate)
	r.Get("/consol/eliminations/{id}", h.HandleGet)
	r.Post("/consol/eliminations/{id}/post", h.transition("post"))
	r.Post("/consol/eliminations/{id}/cancel", h.transition("cancel"))
	r.Post("/consol/eliminations/{id}/reset", h.transition("reset"))
}

type generateRequest struct {
	OwnerEntityID int64  `json:"owner_entity_id" validate:"required,gt=0"`
	DateFrom      string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo        string `json:"date_to" validate:"required,datetime=2006-01-02"`
}

type generateResponse struct {
	Entry       *entryResponse `json:"entry"`
	Pairs       int            `json:"pairs"`
	TotalAmount float64        `json:"total_amount"`
	Warnings    []string       `json:"warnings,omitempty"`
}

type entryResponse struct {
	ID            int64               `json:"id"`
	Reference     string              `json:"reference"`
	Name          string              `json:"name"`
	OwningEntity  int64               `json:"owning_entity_id"`
	Date          string              `json:"date"`
	DateFrom      string              `json:"date_from"`
	DateTo        string              `json:"date_to"`
	State         string              `json:"state"`
	AutoGenerated bool                `json:"auto_generated"`
	SourceLineIDs []int64             `json:"source_line_ids,omitempty"`
	Lines         []entryLineResponse `json:"lines"`
}

type entryLineResponse struct {
	ID        int64   `json:"id"`
	EntityID  int64   `json:"entity_id"`
	AccountID int64   `json:"account_id"`
	Label     string  `json:"label,omitempty"`
	Debit     float64 `json:"debit"`
	Credit    float64 `json:"credit"`
}

func newEntryResponse(entry elimination.Entry) *entryResponse {
	resp := &entryResponse{
		ID:            entry.ID,
		Reference:     entry.Reference,
		Name:          entry.Name,
		OwningEntity:  entry.OwningEntityID,
		Date:          entry.Date.Format("2006-01-02"),
		DateFrom:      entry.DateFrom.Format("2006-01-02"),
		DateTo:        entry.DateTo.Format("2006-01-02"),
		State:         string(entry.State),
		AutoGenerated: entry.AutoGenerated,
		SourceLineIDs: entry.SourceLineIDs,
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, entryLineResponse{
			ID:        line.ID,
			EntityID:  line.EntityID,
			AccountID: line.AccountID,
			Label:     line.Label,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	return resp
}

// HandleGenerate runs the AR/AP matching routine for an owner and period.
func (h *EliminationHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	from, _ := time.Parse("2006-01-02", req.DateFrom)
	to, _ := time.Parse("2006-01-02", req.DateTo)
	if to.Before(from) {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", "date_to precedes date_from")
		return
	}
	result, err := h.generator.GenerateEliminations(r.Context(), req.OwnerEntityID, from, to)
	if err != nil {
		h.logger.Error("generate eliminations", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	resp := generateResponse{
		Pairs:       result.Pairs,
		TotalAmount: result.TotalAmount,
		Warnings:    result.Warnings,
	}
	status := http.StatusOK
	if result.Entry != nil {
		resp.Entry = newEntryResponse(*result.Entry)
		status = http.StatusCreated
	}
	httpx.JSON(w, status, resp)
}

// HandleGet fetches one elimination entry with lines.
func (h *EliminationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	entry, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		h.respondEntryError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newEntryResponse(entry))
}

func (h *EliminationHandler) transition(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := entryID(w, r)
		if !ok {
			return
		}
		actor := actorFromRequest(r)
		var err error
		switch action {
		case "post":
			err = h.lifecycle.Post(r.Context(), id, actor)
		case "cancel":
			err = h.lifecycle.Cancel(r.Context(), id, actor)
		case "reset":
			err = h.lifecycle.ResetToDraft(r.Context(), id, actor)
		}
		if err != nil {
			h.respondEntryError(w, err)
			return
		}
		entry, err := h.lifecycle.Get(r.Context(), id)
		if err != nil {
			h.respondEntryError(w, err)
			return
		}
		// State changes move figures in or out of aggregation for every tree
		// containing the owner, so all cached reports are stale now.
		if invErr := h.cache.Invalidate(r.Context()); invErr != nil {
			h.logger.Warn("invalidate report cache", slog.Any("error", invErr))
		}
		httpx.JSON(w, http.StatusOK, newEntryResponse(entry))
	}
}

func (h *EliminationHandler) respondEntryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, elimination.ErrEntryNotFound):
		httpx.Problem(w, http.StatusNotFound, "entry not found", err.Error())
	case errors.Is(err, elimination.ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "invalid state transition", err.Error())
	default:
		h.logger.Error("elimination entry operation", slog.Any("error", err))
		httpx.Error(w, err)
	}
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid entry id", "entry id must be a positive integer")
		return 0, false
	}
	return id, true
}
