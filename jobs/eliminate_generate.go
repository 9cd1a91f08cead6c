package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/thinq-erp/consol/internal/elimination"
	jobmetrics "github.com/thinq-erp/consol/internal/jobs"
)

// EliminationService describes the behaviour required to draft entries.
type EliminationService interface {
	GenerateEliminations(ctx context.Context, owner int64, from, to time.Time) (elimination.GenerateResult, error)
}

// OwnerSource lists the entities that carry active elimination rules.
type OwnerSource interface {
	ActiveRuleOwners(ctx context.Context) ([]int64, error)
}

// EliminationGenerateJob coordinates the scheduled generate workflow.
type EliminationGenerateJob struct {
	Service EliminationService
	Owners  OwnerSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewEliminationGenerateJob constructs the job handler.
func NewEliminationGenerateJob(service EliminationService, owners OwnerSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *EliminationGenerateJob {
	return &EliminationGenerateJob{
		Service: service,
		Owners:  owners,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (j *EliminationGenerateJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}

// Handle executes the elimination generate job.
func (j *EliminationGenerateJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil || j.Owners == nil {
		return errors.New("eliminate generate: dependencies not configured")
	}
	var payload EliminationGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskEliminationGenerate)
	var resultErr error
	defer func() {
		_ = tracker.End(resultErr)
	}()

	from, to, err := j.resolvePeriod(payload.DateFrom, payload.DateTo)
	if err != nil {
		resultErr = err
		j.log().Error("resolve period", slog.String("from", payload.DateFrom), slog.String("to", payload.DateTo), slog.Any("error", err))
		return resultErr
	}
	owners, err := j.resolveOwners(ctx, payload.OwnerID)
	if err != nil {
		resultErr = err
		j.log().Error("resolve owners", slog.String("owner", payload.OwnerID), slog.Any("error", err))
		return resultErr
	}
	if len(owners) == 0 {
		j.log().Info("no entities with active elimination rules")
		return resultErr
	}

	start := j.now()
	entries := 0
	pairs := 0
	for _, owner := range owners {
		result, err := j.Service.GenerateEliminations(ctx, owner, from, to)
		if err != nil {
			resultErr = err
			j.log().Error("generate eliminations", slog.Int64("owner_id", owner), slog.Any("error", err))
			return resultErr
		}
		if result.Entry != nil {
			entries++
		}
		pairs += result.Pairs
		j.metrics().AddEliminatedPairs(owner, result.Pairs)
		for _, warning := range result.Warnings {
			j.log().Warn("generate warning", slog.Int64("owner_id", owner), slog.String("warning", warning))
		}
	}

	j.log().Info("elimination generate run finished",
		slog.String("period", from.Format("2006-01-02")+".."+to.Format("2006-01-02")),
		slog.Int("owners", len(owners)),
		slog.Int("entries", entries),
		slog.Int("pairs", pairs),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

// resolvePeriod fills empty bounds with the previous calendar month.
func (j *EliminationGenerateJob) resolvePeriod(fromRaw, toRaw string) (time.Time, time.Time, error) {
	if fromRaw == "" && toRaw == "" {
		now := j.now()
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		from := firstOfMonth.AddDate(0, -1, 0)
		to := firstOfMonth.AddDate(0, 0, -1)
		return from, to, nil
	}
	from, err := time.Parse("2006-01-02", fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date_from %q", fromRaw)
	}
	to, err := time.Parse("2006-01-02", toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date_to %q", toRaw)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("date_to precedes date_from")
	}
	return from, to, nil
}

func (j *EliminationGenerateJob) resolveOwners(ctx context.Context, owner string) ([]int64, error) {
	if owner == "" || owner == "all" {
		return j.Owners.ActiveRuleOwners(ctx)
	}
	id, err := strconv.ParseInt(owner, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid owner id %s", owner)
	}
	return []int64{id}, nil
}

func (j *EliminationGenerateJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *EliminationGenerateJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskEliminationGenerate))
	}
	return slog.Default().With(slog.String("job", TaskEliminationGenerate))
}

func (j *EliminationGenerateJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
