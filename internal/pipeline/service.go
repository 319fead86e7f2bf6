// Package pipeline ties discovery, record building, operator edits and
// submission together for one scanning session.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"checkscan/internal/audit"
	"checkscan/internal/check"
	"checkscan/internal/history"
	"checkscan/internal/scan"
	"checkscan/internal/signing"
	"checkscan/internal/submission"
	dErrors "checkscan/pkg/domain-errors"
	"checkscan/pkg/platform/sentinel"
	"checkscan/pkg/requestcontext"
)

type Discoverer interface {
	Discover(ctx context.Context, root string) (scan.Result, error)
}

type RecordBuilder interface {
	Build(ctx context.Context, groups []scan.Group) ([]*check.Record, error)
}

type Submitter interface {
	SubmitBatch(ctx context.Context, records []check.Record) (submission.BatchResult, error)
	Revert(ctx context.Context, names []string) (submission.RevertResult, error)
	ListScanned(ctx context.Context, page int) (submission.Page, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ScanSummary reports what one discovery produced.
type ScanSummary struct {
	Groups           int `json:"groups"`
	Records          int `json:"records"`
	Incomplete       int `json:"incomplete"`
	Skipped          int `json:"skipped"`
	AlreadyCommitted int `json:"alreadyCommitted"`
}

// RecordView is a record as presented to the operator.
type RecordView struct {
	check.Record
	Valid bool
}

// Service runs the session pipeline over one scan root.
type Service struct {
	root      string
	grouper   Discoverer
	builder   RecordBuilder
	submitter Submitter
	workspace *check.Workspace
	history   history.Store
	audit     AuditPublisher
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithHistory hides groups already committed in an earlier session.
func WithHistory(store history.Store) Option {
	return func(s *Service) {
		s.history = store
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func New(root string, grouper Discoverer, builder RecordBuilder, submitter Submitter, opts ...Option) (*Service, error) {
	if root == "" {
		return nil, errors.New("scan root is required")
	}
	if grouper == nil || builder == nil || submitter == nil {
		return nil, errors.New("grouper, builder and submitter are required")
	}
	s := &Service{
		root:      root,
		grouper:   grouper,
		builder:   builder,
		submitter: submitter,
		workspace: check.NewWorkspace(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Scan rediscovers the scan root and replaces the session records.
func (s *Service) Scan(ctx context.Context) (ScanSummary, error) {
	found, err := s.grouper.Discover(ctx, s.root)
	if err != nil {
		return ScanSummary{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "scan folder cannot be read")
	}
	summary := ScanSummary{
		Groups:     len(found.Groups),
		Incomplete: found.Incomplete,
		Skipped:    len(found.Skipped),
	}

	groups := found.Groups
	if s.history != nil && len(groups) > 0 {
		groups, summary.AlreadyCommitted = s.dropCommitted(ctx, groups)
	}

	records, err := s.builder.Build(ctx, groups)
	if err != nil {
		// The previous records stay in place.
		return ScanSummary{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "scan interrupted")
	}
	s.workspace.Replace(records)
	summary.Records = len(records)
	s.logger.InfoContext(ctx, "scan complete",
		"groups", summary.Groups,
		"records", summary.Records,
		"already_committed", summary.AlreadyCommitted,
	)
	return summary, nil
}

func (s *Service) dropCommitted(ctx context.Context, groups []scan.Group) ([]scan.Group, int) {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	committed, err := s.history.Committed(ctx, names)
	if err != nil {
		s.logger.WarnContext(ctx, "submission history unavailable", "error", err)
		return groups, 0
	}
	kept := groups[:0:0]
	for _, g := range groups {
		if !committed[g.Name] {
			kept = append(kept, g)
		}
	}
	return kept, len(groups) - len(kept)
}

// Records lists the session records sorted by name.
func (s *Service) Records() []RecordView {
	records := s.workspace.List()
	views := make([]RecordView, len(records))
	for i := range records {
		views[i] = RecordView{Record: records[i], Valid: check.IsComplete(&records[i])}
	}
	return views
}

// Edit applies an operator correction to one record.
func (s *Service) Edit(name string, edit check.Edit) (RecordView, error) {
	r, err := s.workspace.Update(name, edit)
	if err != nil {
		return RecordView{}, translate(err)
	}
	return RecordView{Record: r, Valid: check.IsComplete(&r)}, nil
}

// Submit sends the named records as one batch, or every complete record
// when names is empty. The records stay checked out until the batch and its
// bookkeeping finish, so overlapping calls never send a record twice. A
// committed batch leaves the workspace and is remembered; a failed one stays
// for correction and re-submission.
func (s *Service) Submit(ctx context.Context, names []string) (submission.BatchResult, error) {
	records, err := s.workspace.Checkout(names)
	if err != nil {
		return submission.BatchResult{}, translate(err)
	}
	if len(records) == 0 {
		return submission.BatchResult{}, dErrors.New(dErrors.CodeValidation, "no complete record to submit")
	}
	defer s.workspace.Release(recordNames(records)...)

	result, err := s.submitter.SubmitBatch(ctx, records)
	if err != nil {
		return submission.BatchResult{}, translate(err)
	}

	// Bookkeeping must survive a caller that went away mid-batch.
	bg := context.WithoutCancel(ctx)
	if committed := result.Committed(); len(committed) > 0 {
		s.workspace.Remove(committed...)
		if s.history != nil {
			if err := s.history.Remember(bg, committed); err != nil {
				s.logger.WarnContext(ctx, "cannot record committed groups", "batch_id", result.BatchID, "error", err)
			}
		}
	}
	if s.audit != nil {
		event := audit.EventFromBatch(result, requestcontext.Now(ctx))
		if err := s.audit.Emit(bg, event); err != nil {
			s.logger.ErrorContext(ctx, "cannot audit batch", "batch_id", result.BatchID, "error", err)
		}
	}
	return result, nil
}

func recordNames(records []check.Record) []string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	return names
}

// Revert re-drives compensation for names, e.g. after a failed revert.
func (s *Service) Revert(ctx context.Context, names []string) (submission.RevertResult, error) {
	if len(names) == 0 {
		return submission.RevertResult{}, dErrors.New(dErrors.CodeInvalidInput, "names are required")
	}
	result, err := s.submitter.Revert(ctx, names)
	if err != nil {
		return submission.RevertResult{}, translate(err)
	}
	return result, nil
}

// ListScanned returns one page of checks already registered remotely.
func (s *Service) ListScanned(ctx context.Context, page int) (submission.Page, error) {
	p, err := s.submitter.ListScanned(ctx, page)
	if err != nil {
		return submission.Page{}, translate(err)
	}
	return p, nil
}

// translate maps package errors onto domain codes for the transport layer.
func translate(err error) error {
	switch {
	case errors.Is(err, signing.ErrNoSession), errors.Is(err, signing.ErrSessionExpired):
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "no valid signing session")
	case errors.Is(err, signing.ErrUnsupportedAlgorithm), errors.Is(err, signing.ErrInvalidKey):
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "signing session cannot sign requests")
	case errors.Is(err, check.ErrIncompleteRecord):
		return dErrors.Wrap(err, dErrors.CodeValidation, "record cannot be submitted")
	case errors.Is(err, check.ErrRecordInFlight):
		return dErrors.Wrap(err, dErrors.CodeConflict, "record is being submitted")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "unknown record")
	default:
		return err
	}
}
