package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/thinq-erp/consol/internal/hierarchy"
	"github.com/thinq-erp/consol/internal/platform/httpx"
)

var validate = validator.New()

// LinkService is the hierarchy surface the link endpoints call.
type LinkService interface {
	CreateLink(ctx context.Context, input hierarchy.CreateLinkInput) (hierarchy.Link, error)
	DeactivateLink(ctx context.Context, id, actorID int64) error
	Descendants(ctx context.Context, root int64, at time.Time, includeSelf bool) ([]int64, error)
}

// LinkHandler wires the HTTP layer for ownership link maintenance.
type LinkHandler struct {
	logger  *slog.Logger
	service LinkService
}

// NewLinkHandler constructs the handler instance.
func NewLinkHandler(logger *slog.Logger, service LinkService) *LinkHandler {
	return &LinkHandler{logger: logger, service: service}
}

// MountRoutes registers link and tree endpoints.
func (h *LinkHandler) MountRoutes(r chi.Router) {
	r.Post("/consol/links", h.HandleCreate)
	r.Delete("/consol/links/{id}", h.HandleDeactivate)
	r.Get("/consol/entities/{id}/descendants", h.HandleDescendants)
}

type createLinkRequest struct {
	ParentID int64  `json:"parent_id" validate:"required,gt=0"`
	ChildID  int64  `json:"child_id" validate:"required,gt=0"`
	DateFrom string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo   string `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Note     string `json:"note" validate:"max=500"`
}

type linkResponse struct {
	ID       int64  `json:"id"`
	ParentID int64  `json:"parent_id"`
	ChildID  int64  `json:"child_id"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to,omitempty"`
	Active   bool   `json:"active"`
	Note     string `json:"note,omitempty"`
}

func newLinkResponse(link hierarchy.Link) linkResponse {
	resp := linkResponse{
		ID:       link.ID,
		ParentID: link.ParentID,
		ChildID:  link.ChildID,
		DateFrom: link.DateFrom.Format("2006-01-02"),
		Active:   link.Active,
		Note:     link.Note,
	}
	if link.DateTo != nil {
		resp.DateTo = link.DateTo.Format("2006-01-02")
	}
	return resp
}

// HandleCreate registers a parent->child ownership link.
func (h *LinkHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	dateFrom, _ := time.Parse("2006-01-02", req.DateFrom)
	input := hierarchy.CreateLinkInput{
		ParentID: req.ParentID,
		ChildID:  req.ChildID,
		DateFrom: dateFrom,
		Note:     req.Note,
		ActorID:  actorFromRequest(r),
	}
	if req.DateTo != "" {
		dateTo, _ := time.Parse("2006-01-02", req.DateTo)
		if dateTo.Before(dateFrom) {
			httpx.Problem(w, http.StatusBadRequest, "invalid payload", "date_to precedes date_from")
			return
		}
		input.DateTo = &dateTo
	}
	link, err := h.service.CreateLink(r.Context(), input)
	if err != nil {
		h.respondLinkError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newLinkResponse(link))
}

// HandleDeactivate retires a link without deleting its history.
func (h *LinkHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid link id", "link id must be a positive integer")
		return
	}
	if err := h.service.DeactivateLink(r.Context(), id, actorFromRequest(r)); err != nil {
		h.respondLinkError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDescendants resolves the ownership tree from an entity at a date.
func (h *LinkHandler) HandleDescendants(w http.ResponseWriter, r *http.Request) {
	root, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || root <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid entity id", "entity id must be a positive integer")
		return
	}
	var at time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid date", "at must be YYYY-MM-DD")
			return
		}
	}
	ids, err := h.service.Descendants(r.Context(), root, at, true)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"root_entity_id": root,
		"entity_ids":     ids,
	})
}

func (h *LinkHandler) respondLinkError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hierarchy.ErrOverlap):
		httpx.Problem(w, http.StatusConflict, "overlapping link", err.Error())
	case errors.Is(err, hierarchy.ErrCycle), errors.Is(err, hierarchy.ErrSelfLink):
		httpx.Problem(w, http.StatusUnprocessableEntity, "invalid link", err.Error())
	case errors.Is(err, hierarchy.ErrLinkNotFound):
		httpx.Problem(w, http.StatusNotFound, "link not found", err.Error())
	default:
		h.logger.Error("hierarchy link operation", slog.Any("error", err))
		httpx.Error(w, err)
	}
}

// actorFromRequest reads the acting user id set by the gateway. Unset or
// malformed headers map to the anonymous actor.
func actorFromRequest(r *http.Request) int64 {
	actor, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	if err != nil || actor < 0 {
		return 0
	}
	return actor
}
