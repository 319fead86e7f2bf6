package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"checkscan/internal/check"
	"checkscan/internal/platform/metrics"
	"checkscan/internal/signing"
	"checkscan/pkg/requestcontext"
)

// Sender performs the remote calls of one signed session.
type Sender interface {
	SaveCheck(ctx context.Context, signer *signing.Signer, record check.Record) Outcome
	Revert(ctx context.Context, signer *signing.Signer, names []string) RevertResult
	ListScanned(ctx context.Context, signer *signing.Signer, page int) (Page, error)
}

// Sessions hands out the signing context for the duration of a batch.
type Sessions interface {
	Acquire() (signing.Context, func(), error)
}

// Coordinator submits batches of records and compensates partial failures
// with a single whole-batch revert.
type Coordinator struct {
	sender      Sender
	sessions    Sessions
	concurrency int64
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithConcurrency bounds how many uploads run at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = int64(n)
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

func New(sender Sender, sessions Sessions, opts ...Option) (*Coordinator, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if sessions == nil {
		return nil, errors.New("sessions is required")
	}
	c := &Coordinator{
		sender:      sender,
		sessions:    sessions,
		concurrency: 4,
		logger:      slog.Default(),
		tracer:      otel.Tracer("checkscan/submission"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SubmitBatch posts every record concurrently and waits for all outcomes.
// If any record failed, or ctx ended before every record was started, one
// revert is issued naming every attempted record in input order.
//
// The returned error covers preconditions only (no session, incomplete
// records); nothing is sent in that case. Per-record and revert failures
// are reported in the BatchResult.
func (c *Coordinator) SubmitBatch(ctx context.Context, records []check.Record) (BatchResult, error) {
	if len(records) == 0 {
		return BatchResult{Outcomes: []Outcome{}, Attempted: []string{}}, nil
	}
	for i := range records {
		if !check.IsComplete(&records[i]) {
			return BatchResult{}, fmt.Errorf("%w: %s", check.ErrIncompleteRecord, records[i].Name)
		}
	}

	sc, release, err := c.sessions.Acquire()
	if err != nil {
		return BatchResult{}, err
	}
	defer release()
	signer, err := signing.NewSigner(sc)
	if err != nil {
		return BatchResult{}, err
	}

	batchID := uuid.NewString()
	ctx = requestcontext.WithBatchID(ctx, batchID)
	ctx, span := c.tracer.Start(ctx, "submission.SubmitBatch",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.Int("batch.size", len(records)),
		))
	defer span.End()

	// Uploads already started run to completion even if ctx is cancelled.
	detached := context.WithoutCancel(ctx)

	outcomes := make([]Outcome, len(records))
	started := 0
	sem := semaphore.NewWeighted(c.concurrency)
	var g errgroup.Group
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		started++
		g.Go(func() error {
			defer sem.Release(1)
			outcomes[i] = c.submitOne(detached, signer, records[i])
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{
		BatchID:   batchID,
		Outcomes:  outcomes[:started],
		Attempted: make([]string, 0, started),
	}
	for i := range records {
		if i < started {
			result.Attempted = append(result.Attempted, records[i].Name)
		} else {
			result.Skipped = append(result.Skipped, records[i].Name)
		}
	}
	result.Failed = len(result.Skipped) > 0 || len(result.FailedNames()) > 0

	if result.Failed && len(result.Attempted) > 0 {
		revert := c.revert(detached, signer, result.Attempted)
		result.Revert = &revert
	}

	if result.Failed {
		span.SetStatus(codes.Error, "batch failed")
		c.logger.WarnContext(ctx, "batch failed",
			"batch_id", batchID,
			"attempted", len(result.Attempted),
			"failed", result.FailedNames(),
			"skipped", len(result.Skipped),
		)
	} else {
		c.logger.InfoContext(ctx, "batch submitted", "batch_id", batchID, "count", len(result.Attempted))
	}
	return result, nil
}

func (c *Coordinator) submitOne(ctx context.Context, signer *signing.Signer, record check.Record) Outcome {
	ctx, span := c.tracer.Start(ctx, "submission.SaveCheck",
		trace.WithAttributes(attribute.String("check.name", record.Name)))
	defer span.End()

	start := time.Now()
	outcome := c.sender.SaveCheck(ctx, signer, record)
	if outcome.HasError {
		span.SetStatus(codes.Error, outcome.ErrorDetail)
	}
	if c.metrics != nil {
		c.metrics.ObserveSubmission(start, outcome.HasError)
	}
	return outcome
}

func (c *Coordinator) revert(ctx context.Context, signer *signing.Signer, names []string) RevertResult {
	ctx, span := c.tracer.Start(ctx, "submission.Revert",
		trace.WithAttributes(attribute.StringSlice("check.names", names)))
	defer span.End()

	result := c.sender.Revert(ctx, signer, names)
	if c.metrics != nil {
		c.metrics.IncrementRevert(result.HasError)
	}
	if result.HasError {
		span.SetStatus(codes.Error, result.ErrorDetail)
		c.logger.ErrorContext(ctx, "revert not applied, manual re-drive required",
			"batch_id", requestcontext.BatchID(ctx),
			"names", names,
			"error", result.ErrorDetail,
		)
	}
	return result
}

// Revert issues a revert outside of a batch, e.g. to re-drive a failed one.
// It is not retried.
func (c *Coordinator) Revert(ctx context.Context, names []string) (RevertResult, error) {
	if len(names) == 0 {
		return RevertResult{Names: []string{}}, nil
	}
	sc, release, err := c.sessions.Acquire()
	if err != nil {
		return RevertResult{}, err
	}
	defer release()
	signer, err := signing.NewSigner(sc)
	if err != nil {
		return RevertResult{}, err
	}
	return c.revert(ctx, signer, names), nil
}

// ListScanned returns one page of the remotely registered checks.
func (c *Coordinator) ListScanned(ctx context.Context, page int) (Page, error) {
	sc, release, err := c.sessions.Acquire()
	if err != nil {
		return Page{}, err
	}
	defer release()
	signer, err := signing.NewSigner(sc)
	if err != nil {
		return Page{}, err
	}
	return c.sender.ListScanned(ctx, signer, page)
}
