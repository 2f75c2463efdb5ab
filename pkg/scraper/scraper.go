package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"igarchive/pkg/checkpoint"
	"igarchive/pkg/config"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/retry"
)

// Phase is a state of the run state machine
type Phase string

const (
	PhaseInit          Phase = "init"
	PhaseFetching      Phase = "fetching"
	PhaseMerging       Phase = "merging"
	PhaseCheckpointing Phase = "checkpointing"
	PhaseDone          Phase = "done"
	PhaseFailed        Phase = "failed"
)

// Outcome is the terminal state of a run
type Outcome string

const (
	OutcomeDone   Outcome = "done"
	OutcomeFailed Outcome = "failed"
)

// Options bounds a single run
type Options struct {
	// BatchSize is the number of records requested per fetch
	BatchSize int
	// MaxBatches stops the run after this many batches; 0 means until exhausted
	MaxBatches int
}

// OptionsFromConfig returns the run options configured in the fetch section
func OptionsFromConfig(fc config.FetchConfig) Options {
	return Options{BatchSize: fc.BatchSize, MaxBatches: fc.MaxBatches}
}

// BatchReport describes one durably checkpointed batch
type BatchReport struct {
	RunID           string
	Target          string
	Batch           int
	Fetched         int
	Added           int
	ArchiveSize     int
	CumulativeCount int
	NextCursor      *string
	HasMore         bool
}

// Result summarises a run
type Result struct {
	RunID       string
	Target      string
	Outcome     Outcome
	Batches     int
	Fetched     int
	Added       int
	ArchiveSize int
	// Checkpoint is the last durable state, nil if it could not be loaded
	Checkpoint *checkpoint.State
	// Retryable is set on failures that a later invocation may get past
	Retryable  bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the run
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Scraper drives the fetch, merge and checkpoint loop for one target at a time
type Scraper struct {
	fetcher     Fetcher
	checkpoints CheckpointStore
	archives    ArchiveStore
	retry       config.RetryConfig
	logger      logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	onBatch func(BatchReport)
	onRetry func(attempt int, err error, delay time.Duration)
}

// New creates a Scraper. retryCfg bounds the attempts made for each batch;
// unset limits fall back to config.DefaultConfig.
func New(fetcher Fetcher, checkpoints CheckpointStore, archives ArchiveStore, retryCfg config.RetryConfig, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scraper{
		fetcher:     fetcher,
		checkpoints: checkpoints,
		archives:    archives,
		retry:       retryCfg,
		logger:      log,
		now:         time.Now,
		sleep:       retry.Wait,
		newID:       uuid.NewString,
	}
}

// SetClock replaces the clock used for checkpoint timestamps
func (s *Scraper) SetClock(now func() time.Time) {
	s.now = now
}

// SetSleep replaces the backoff wait
func (s *Scraper) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

// OnBatch registers a hook called after every checkpointed batch
func (s *Scraper) OnBatch(fn func(BatchReport)) {
	s.onBatch = fn
}

// OnRetry registers a hook called before every backoff wait
func (s *Scraper) OnRetry(fn func(attempt int, err error, delay time.Duration)) {
	s.onRetry = fn
}

// Run fetches target's collection batch by batch, starting from its saved
// checkpoint. Each batch is merged into the archive, the archive is saved and
// only then the checkpoint advances. Run returns when the source is exhausted,
// MaxBatches is reached, or a batch fails; the returned error equals Result.Err.
func (s *Scraper) Run(ctx context.Context, target string, opts Options) (*Result, error) {
	result := &Result{
		RunID:     s.newID(),
		Target:    target,
		StartedAt: s.now(),
	}

	log := s.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"target": target,
	})

	phase := PhaseInit
	if err := validate(target, opts); err != nil {
		return s.fail(log, result, phase, err, false)
	}

	state, err := s.checkpoints.Load(target)
	if err != nil {
		return s.fail(log, result, phase, fmt.Errorf("failed to load checkpoint: %w", err), false)
	}
	result.Checkpoint = state

	records, err := s.archives.Load(target)
	if err != nil {
		return s.fail(log, result, phase, fmt.Errorf("failed to load archive: %w", err), false)
	}
	result.ArchiveSize = len(records)

	log.InfoWithFields("Starting run", map[string]interface{}{
		"cursor":           state.AfterCursor,
		"cumulative_count": state.CumulativeCount,
		"checkpoint_age":   state.Age(s.now()),
		"archive_size":     len(records),
		"batch_size":       opts.BatchSize,
		"max_batches":      opts.MaxBatches,
	})

	for {
		s.transition(log, phase, PhaseFetching)
		phase = PhaseFetching

		if err := ctx.Err(); err != nil {
			return s.fail(log, result, phase, err, true)
		}

		page, err := s.fetch(ctx, log, target, state.AfterCursor, opts.BatchSize)
		if err != nil {
			return s.fail(log, result, phase, err, isRetryable(ctx, err))
		}
		if page.HasMore && models.CursorEqual(page.NextCursor, state.AfterCursor) {
			err := errs.New(errs.ErrorTypeParsing, 0, "cursor did not advance past %s", models.CursorString(state.AfterCursor))
			return s.fail(log, result, phase, errs.Escalate(err), false)
		}

		s.transition(log, phase, PhaseMerging)
		phase = PhaseMerging

		merged, added := s.archives.Merge(records, page.Records)

		s.transition(log, phase, PhaseCheckpointing)
		phase = PhaseCheckpointing

		if err := s.archives.Save(target, merged); err != nil {
			return s.fail(log, result, phase, fmt.Errorf("failed to save archive: %w", err), false)
		}
		records = merged

		next := &checkpoint.State{
			AfterCursor:     page.NextCursor,
			CumulativeCount: state.CumulativeCount + page.Len(),
			UpdatedAt:       s.now(),
		}
		if err := s.checkpoints.Save(target, next); err != nil {
			return s.fail(log, result, phase, fmt.Errorf("failed to save checkpoint: %w", err), false)
		}
		state = next

		result.Batches++
		result.Fetched += page.Len()
		result.Added += added
		result.ArchiveSize = len(records)
		result.Checkpoint = state

		report := BatchReport{
			RunID:           result.RunID,
			Target:          target,
			Batch:           result.Batches,
			Fetched:         page.Len(),
			Added:           added,
			ArchiveSize:     len(records),
			CumulativeCount: state.CumulativeCount,
			NextCursor:      state.AfterCursor,
			HasMore:         page.HasMore,
		}
		log.InfoWithFields("Batch checkpointed", map[string]interface{}{
			"batch":            report.Batch,
			"fetched":          report.Fetched,
			"added":            report.Added,
			"archive_size":     report.ArchiveSize,
			"cumulative_count": report.CumulativeCount,
			"has_more":         report.HasMore,
		})
		if s.onBatch != nil {
			s.onBatch(report)
		}

		if !page.HasMore {
			log.Debug("Source exhausted")
			break
		}
		if opts.MaxBatches > 0 && result.Batches >= opts.MaxBatches {
			log.DebugWithFields("Batch limit reached", map[string]interface{}{
				"max_batches": opts.MaxBatches,
			})
			break
		}
	}

	s.transition(log, phase, PhaseDone)
	result.Outcome = OutcomeDone
	result.FinishedAt = s.now()

	log.InfoWithFields("Run completed", map[string]interface{}{
		"batches":      result.Batches,
		"fetched":      result.Fetched,
		"added":        result.Added,
		"archive_size": result.ArchiveSize,
		"duration":     result.Duration(),
	})

	return result, nil
}

// fetch fetches one page, retrying transient failures with backoff.
// Parsing failures on more than MalformedLimit consecutive attempts are
// escalated to fatal.
func (s *Scraper) fetch(ctx context.Context, log logger.Logger, target string, cursor *string, batchSize int) (*models.Page, error) {
	rc := withRetryLimits(s.retry)
	cfg := retry.FromConfig(ctx, rc, log)
	cfg.Sleep = s.sleep
	cfg.OnRetry = s.onRetry

	malformed := 0
	return retry.DoWithResult(func(attempt int) (*models.Page, error) {
		page, err := s.fetcher.FetchPage(ctx, target, cursor, batchSize)
		if err == nil {
			if page == nil {
				page = &models.Page{}
			}
			return page, nil
		}

		if errs.TypeOf(err) != errs.ErrorTypeParsing {
			malformed = 0
			return nil, err
		}

		malformed++
		if malformed > rc.MalformedLimit {
			log.WarnWithFields("Malformed responses persist, giving up", map[string]interface{}{
				"attempt":   attempt,
				"malformed": malformed,
			})
			return nil, errs.Escalate(err)
		}
		return nil, err
	}, cfg)
}

// withRetryLimits fills unset attempt limits from the defaults. A zero
// MaxAttempts would otherwise retry forever.
func withRetryLimits(rc config.RetryConfig) config.RetryConfig {
	defaults := config.DefaultConfig().Retry
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = defaults.MaxAttempts
	}
	if rc.MalformedLimit < 1 {
		rc.MalformedLimit = defaults.MalformedLimit
	}
	return rc
}

func (s *Scraper) fail(log logger.Logger, result *Result, phase Phase, err error, retryable bool) (*Result, error) {
	s.transition(log, phase, PhaseFailed)

	result.Outcome = OutcomeFailed
	result.Err = err
	result.Retryable = retryable
	result.FinishedAt = s.now()

	log.WithError(err).ErrorWithFields("Run failed", map[string]interface{}{
		"class":     errs.ClassOf(err),
		"retryable": retryable,
		"batches":   result.Batches,
	})

	return result, err
}

func (s *Scraper) transition(log logger.Logger, from, to Phase) {
	log.DebugWithFields("State transition", map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
}

func validate(target string, opts Options) error {
	if strings.TrimSpace(target) == "" {
		return errs.Configf("target is required")
	}
	if opts.BatchSize <= 0 {
		return errs.Configf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.MaxBatches < 0 {
		return errs.Configf("max batches must not be negative, got %d", opts.MaxBatches)
	}
	return nil
}

// isRetryable reports whether a failed fetch may succeed on a later run
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return retry.IsExhausted(err)
}
