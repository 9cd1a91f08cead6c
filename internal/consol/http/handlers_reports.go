package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"

	"github.com/thinq-erp/consol/internal/consol"
	"github.com/thinq-erp/consol/internal/platform/httpx"
)

// ReportService is the consolidation surface the report endpoints call.
type ReportService interface {
	ComputeRawMatrix(ctx context.Context, filter consol.Filters) (consol.MatrixReport, error)
	ComputeBalanceSheet(ctx context.Context, filter consol.Filters) (consol.Report, error)
	ComputeProfitLoss(ctx context.Context, filter consol.Filters) (consol.Report, error)
	ComputeCashFlow(ctx context.Context, filter consol.Filters) (consol.Report, error)
}

// ReportHandler wires the HTTP layer for consolidated report endpoints.
type ReportHandler struct {
	logger    *slog.Logger
	service   ReportService
	cache     *reportCache
	rateLimit func(http.Handler) http.Handler
}

// NewReportHandler constructs the handler instance. A nil redis client
// disables caching but not the endpoints.
func NewReportHandler(logger *slog.Logger, service ReportService, redisClient *redis.Client, cacheTTL time.Duration) *ReportHandler {
	limiter := httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	return &ReportHandler{
		logger:    logger,
		service:   service,
		cache:     newReportCache(redisClient, cacheTTL),
		rateLimit: limiter,
	}
}

// MountRoutes registers consolidated report endpoints.
func (h *ReportHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/consol/reports/matrix", h.HandleMatrix)
		r.Get("/consol/reports/bs", h.HandleBalanceSheet)
		r.Get("/consol/reports/pl", h.HandleProfitLoss)
		r.Get("/consol/reports/cf", h.HandleCashFlow)
		r.Get("/consol/reports/bs/export.csv", h.exportCSV("bs", h.service.ComputeBalanceSheet))
		r.Get("/consol/reports/pl/export.csv", h.exportCSV("pl", h.service.ComputeProfitLoss))
		r.Get("/consol/reports/cf/export.csv", h.exportCSV("cf", h.service.ComputeCashFlow))
	})
}

// HandleMatrix serves the flattened raw consolidation matrix.
func (h *ReportHandler) HandleMatrix(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "matrix", func(ctx context.Context, filter consol.Filters) (any, error) {
		return h.service.ComputeRawMatrix(ctx, filter)
	})
}

// HandleBalanceSheet serves the consolidated balance sheet.
func (h *ReportHandler) HandleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "bs", func(ctx context.Context, filter consol.Filters) (any, error) {
		return h.service.ComputeBalanceSheet(ctx, filter)
	})
}

// HandleProfitLoss serves the consolidated profit and loss statement.
func (h *ReportHandler) HandleProfitLoss(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "pl", func(ctx context.Context, filter consol.Filters) (any, error) {
		return h.service.ComputeProfitLoss(ctx, filter)
	})
}

// HandleCashFlow serves the consolidated cash flow statement.
func (h *ReportHandler) HandleCashFlow(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "cf", func(ctx context.Context, filter consol.Filters) (any, error) {
		return h.service.ComputeCashFlow(ctx, filter)
	})
}

func (h *ReportHandler) serveCached(w http.ResponseWriter, r *http.Request, kind string, build func(context.Context, consol.Filters) (any, error)) {
	filter, errs := parseReportFilters(r)
	if len(errs) > 0 {
		httpx.Problem(w, http.StatusBadRequest, "invalid filters", strings.Join(errs, "; "))
		return
	}
	key := buildCacheKey(kind, filter)
	if payload, ok := h.cache.Get(r.Context(), key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		_, _ = w.Write(payload)
		return
	}
	result, err, shared := singleflightBuild(r.Context(), key, func(ctx context.Context) (interface{}, error) {
		report, err := build(ctx, filter)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(report)
		if err != nil {
			return nil, err
		}
		h.cache.Set(ctx, key, payload)
		return payload, nil
	})
	if err != nil {
		h.logger.Error("build consol report", slog.String("kind", kind), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "report failed", err.Error())
		return
	}
	payload, ok := result.([]byte)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "report failed", "unexpected payload type")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if shared {
		w.Header().Set("X-Cache", "SHARED")
	}
	_, _ = w.Write(payload)
}

type statementBuilder func(context.Context, consol.Filters) (consol.Report, error)

func (h *ReportHandler) exportCSV(kind string, build statementBuilder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, errs := parseReportFilters(r)
		if len(errs) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "invalid filters", strings.Join(errs, "; "))
			return
		}
		report, err := build(r.Context(), filter)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "report failed", err.Error())
			return
		}
		filename := fmt.Sprintf("%s-%d-%s.csv", kind, filter.RootEntityID, filter.DateTo.Format("2006-01-02"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
		if err := writeReportCSV(w, report); err != nil {
			h.logger.Error("stream consol report csv", slog.String("kind", kind), slog.Any("error", err))
		}
	}
}

func parseReportFilters(r *http.Request) (consol.Filters, []string) {
	q := r.URL.Query()
	var errs []string
	root, err := strconv.ParseInt(q.Get("root"), 10, 64)
	if err != nil || root <= 0 {
		errs = append(errs, "root entity id is required")
	}
	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		errs = append(errs, "from must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		errs = append(errs, "to must be YYYY-MM-DD")
	}
	includeElim := false
	switch strings.ToLower(strings.TrimSpace(q.Get("elim"))) {
	case "", "off", "false", "0":
	case "on", "true", "1":
		includeElim = true
	default:
		errs = append(errs, "elim must be on or off")
	}
	if len(errs) > 0 {
		return consol.Filters{}, errs
	}
	if to.Before(from) {
		return consol.Filters{}, []string{"to precedes from"}
	}
	return consol.Filters{
		RootEntityID:       root,
		DateFrom:           from,
		DateTo:             to,
		IncludeElimination: includeElim,
	}, nil
}
