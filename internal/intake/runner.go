// internal/intake/runner.go
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"recruit-intake/internal/common/config"
	apperrors "recruit-intake/internal/common/errors"
	"recruit-intake/internal/common/logger"
	"recruit-intake/internal/common/metrics"
	"recruit-intake/internal/common/observability"
	"recruit-intake/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "recruit-intake/intake"

// Indexer mirrors accepted vacancies into a search backend.
type Indexer interface {
	IndexVacancy(ctx context.Context, v *models.Vacancy) error
}

// Runner processes a batch in fixed-size chunks, one chunk and one item at
// a time, and aggregates the outcome.
type Runner struct {
	resolver  *SchoolResolver
	upserter  *VacancyUpserter
	indexer   Indexer
	chunkSize int
	timeout   time.Duration
	obs       *observability.Observability
	tracer    trace.Tracer
	logger    logger.Logger
	now       func() time.Time
}

type RunnerOption func(*Runner)

// stageError tags a per-item failure with the code of the stage that
// produced it.
type stageError struct {
	code apperrors.ErrorCode
	err  error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// ErrorCodeOf returns the code a per-item or batch failure is reported under.
func ErrorCodeOf(err error) apperrors.ErrorCode {
	var vErr *ValidationError
	var sErr *stageError
	switch {
	case errors.As(err, &vErr):
		return apperrors.ErrCodeValidationFailed
	case errors.Is(err, ErrBackendUnavailable):
		return apperrors.ErrCodeDatabaseConnectionFailed
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.ErrCodeBatchTimeout
	case errors.Is(err, ErrInvalidDate):
		return apperrors.ErrCodeInvalidDate
	case errors.Is(err, ErrInvalidNumber):
		return apperrors.ErrCodeInvalidNumber
	case errors.As(err, &sErr):
		return sErr.code
	}
	return apperrors.ErrCodeInternal
}

// WithIndexer mirrors accepted vacancies. Indexing failures are logged only.
func WithIndexer(idx Indexer) RunnerOption {
	return func(r *Runner) { r.indexer = idx }
}

func WithObservability(obs *observability.Observability) RunnerOption {
	return func(r *Runner) { r.obs = obs }
}

func NewRunner(store Store, cfg config.IntakeConfig, log logger.Logger, opts ...RunnerOption) *Runner {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 50
	}
	r := &Runner{
		resolver:  NewSchoolResolver(store, log),
		upserter:  NewVacancyUpserter(store, cfg.DatePolicy, log),
		chunkSize: chunkSize,
		timeout:   config.GetDuration(cfg.BatchTimeout),
		tracer:    observability.Tracer(tracerName),
		logger:    log.WithFields(map[string]interface{}{"component": "intake-runner"}),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run always returns the aggregation collected so far. A non-nil error means
// the batch was aborted because the backend became unavailable.
func (r *Runner) Run(ctx context.Context, items []json.RawMessage) (*models.BatchResult, error) {
	start := r.now()
	result := &models.BatchResult{
		TotalChunks: chunkCount(len(items), r.chunkSize),
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ctx, span := r.tracer.Start(ctx, "intake.batch", trace.WithAttributes(
		attribute.Int("intake.items", len(items)),
		attribute.Int("intake.chunks", result.TotalChunks),
	))
	defer span.End()

	r.logger.Info("processing batch", map[string]interface{}{
		"items":  len(items),
		"chunks": result.TotalChunks,
	})

	runErr := r.runChunks(ctx, items, result)

	r.finish(start, result)
	status := "success"
	switch {
	case runErr != nil:
		status = "failed"
		result.Success = false
		result.Error = runErr.Error()
		result.Code = string(ErrorCodeOf(runErr))
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	case result.TimedOut:
		status = "timed_out"
		result.Success = true
	default:
		result.Success = true
	}

	metrics.IntakeBatchesTotal.WithLabelValues(status).Inc()
	metrics.IntakeBatchDuration.Observe(float64(result.ProcessingTimeMs) / 1000)
	metrics.IntakeItemsTotal.WithLabelValues("accepted").Add(float64(result.Accepted))
	metrics.IntakeItemsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
	r.obs.RecordBatch(ctx, status, time.Duration(result.ProcessingTimeMs)*time.Millisecond)
	r.obs.RecordItems(ctx, "accepted", result.Accepted)
	r.obs.RecordItems(ctx, "skipped", result.Skipped)

	r.logger.Info("batch completed", map[string]interface{}{
		"status":           status,
		"processed":        result.Processed,
		"accepted":         result.Accepted,
		"skipped":          result.Skipped,
		"created":          result.Created,
		"updated":          result.Updated,
		"processingTimeMs": result.ProcessingTimeMs,
	})

	return result, runErr
}

func (r *Runner) runChunks(ctx context.Context, items []json.RawMessage, result *models.BatchResult) error {
	for i := 0; i < len(items); i += r.chunkSize {
		end := i + r.chunkSize
		if end > len(items) {
			end = len(items)
		}

		if err := r.runChunk(ctx, i/r.chunkSize, items[i:end], result); err != nil {
			return err
		}
		if result.TimedOut {
			r.skipRemaining(result, len(items)-result.Processed)
			return nil
		}
	}
	return nil
}

func (r *Runner) runChunk(ctx context.Context, index int, chunk []json.RawMessage, result *models.BatchResult) error {
	ctx, span := r.tracer.Start(ctx, "intake.chunk", trace.WithAttributes(
		attribute.Int("intake.chunk.index", index),
		attribute.Int("intake.chunk.size", len(chunk)),
	))
	defer span.End()

	metrics.IntakeChunksActive.Inc()
	defer metrics.IntakeChunksActive.Dec()

	r.logger.Debug("processing chunk", map[string]interface{}{
		"chunk": index + 1,
		"items": len(chunk),
	})

	for _, raw := range chunk {
		if err := ctx.Err(); err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			result.TimedOut = true
			return nil
		}

		result.Processed++
		rec, outcome, err := r.processItem(ctx, raw)
		if err == nil {
			result.Accepted++
			if outcome == models.OutcomeCreated {
				result.Created++
			} else {
				result.Updated++
			}
			continue
		}

		result.Skipped++

		var vErr *ValidationError
		if errors.As(err, &vErr) {
			metrics.IntakeItemErrorsTotal.WithLabelValues(string(apperrors.ErrCodeValidationFailed)).Inc()
			result.Errors = append(result.Errors, vErr.Error())
			continue
		}

		id := ""
		if rec != nil {
			id = rec.AdzunaID
		}

		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.TimedOut = true
			metrics.IntakeItemErrorsTotal.WithLabelValues(string(apperrors.ErrCodeBatchTimeout)).Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("Error processing %s: batch deadline exceeded", id))
			return nil
		}

		code := ErrorCodeOf(err)
		metrics.IntakeItemErrorsTotal.WithLabelValues(string(code)).Inc()
		result.Errors = append(result.Errors, fmt.Sprintf("Error processing %s: %v", id, err))
		r.logger.Warn("item failed", map[string]interface{}{
			"adzunaId":      id,
			"error":         err,
			"errorCode":     string(code),
			"errorCategory": apperrors.GetErrorCategory(code),
		})

		if errors.Is(err, ErrBackendUnavailable) {
			span.SetStatus(codes.Error, "backend unavailable")
			return err
		}
	}
	return nil
}

func (r *Runner) processItem(ctx context.Context, raw json.RawMessage) (*Record, models.Outcome, error) {
	rec, err := Normalize(raw)
	if err != nil {
		return nil, "", err
	}
	if len(rec.Warnings) > 0 {
		r.logger.Debug("record fields passed through with unexpected types", map[string]interface{}{
			"adzunaId": rec.AdzunaID,
			"warnings": rec.Warnings,
		})
	}

	schoolID, _, err := r.resolver.Resolve(ctx, rec.SchoolName, rec.Location)
	if err != nil {
		return rec, "", &stageError{code: apperrors.ErrCodeSchoolResolveFailed, err: err}
	}

	v, outcome, err := r.upserter.Upsert(ctx, rec, schoolID)
	if err != nil {
		return rec, "", &stageError{code: apperrors.ErrCodeVacancyUpsertFailed, err: err}
	}

	r.logger.Debug("vacancy written", map[string]interface{}{
		"adzunaId": rec.AdzunaID,
		"outcome":  string(outcome),
	})

	if r.indexer != nil {
		if err := r.indexer.IndexVacancy(ctx, v); err != nil {
			r.logger.Warn("failed to index vacancy", map[string]interface{}{
				"adzunaId": rec.AdzunaID,
				"error":    err,
			})
		}
	}

	return rec, outcome, nil
}

// skipRemaining counts the n items never reached before the deadline as
// skipped.
func (r *Runner) skipRemaining(result *models.BatchResult, n int) {
	if n <= 0 {
		return
	}
	result.Processed += n
	result.Skipped += n
	result.Errors = append(result.Errors, fmt.Sprintf("Batch deadline exceeded: %d items not processed", n))
	metrics.IntakeItemErrorsTotal.WithLabelValues(string(apperrors.ErrCodeBatchTimeout)).Add(float64(n))
	r.logger.Warn("batch deadline exceeded", map[string]interface{}{
		"skipped":   n,
		"errorCode": string(apperrors.ErrCodeBatchTimeout),
	})
}

func (r *Runner) finish(start time.Time, result *models.BatchResult) {
	elapsed := r.now().Sub(start)
	result.ProcessingTimeMs = elapsed.Milliseconds()
	if result.Processed > 0 {
		ms := math.Max(float64(result.ProcessingTimeMs), 1)
		result.ItemsPerSecond = int(math.Round(float64(result.Processed) / ms * 1000))
	}
	result.Timestamp = r.now().UTC().Format(time.RFC3339Nano)
}

func chunkCount(n, size int) int {
	if n == 0 {
		return 0
	}
	return (n + size - 1) / size
}
