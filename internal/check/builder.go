package check

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"checkscan/internal/ocr"
	"checkscan/internal/platform/metrics"
	"checkscan/internal/scan"
	"checkscan/pkg/requestcontext"
)

// timestampLayout is the compact date-time prefix of scan names
// (yyyyMMddHHmmss); a three digit millisecond suffix follows it.
const timestampLayout = "20060102150405"

// Builder turns complete scan groups into check records.
type Builder struct {
	extractor ocr.Extractor
	workers   int
	location  *time.Location
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Builder)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) {
		b.metrics = m
	}
}

// WithWorkers bounds how many groups are extracted concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithLocation sets the zone scan names are interpreted in (default local).
func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		if loc != nil {
			b.location = loc
		}
	}
}

func NewBuilder(extractor ocr.Extractor, opts ...Option) *Builder {
	b := &Builder{
		extractor: extractor,
		workers:   4,
		location:  time.Local,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build extracts a record for every complete group, in parallel. Incomplete
// groups and groups whose disposition file yields no text are dropped
// silently. The result keeps the order of groups. A cancelled ctx returns
// its error and no records, never a partial set.
func (b *Builder) Build(ctx context.Context, groups []scan.Group) ([]*Record, error) {
	built := make([]*Record, len(groups))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, grp := range groups {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			built[i] = b.buildOne(ctx, grp)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(built))
	for _, r := range built {
		if r != nil {
			records = append(records, r)
		}
	}
	return records, nil
}

func (b *Builder) buildOne(ctx context.Context, grp scan.Group) *Record {
	if !grp.Complete() {
		return nil
	}
	code := strings.TrimSpace(b.extractor.ExtractCode(ctx, grp.Disposition))
	if code == "" {
		b.logger.DebugContext(ctx, "no code scanned, discarding group", "group", grp.Name)
		if b.metrics != nil {
			b.metrics.IncrementRecordsDiscarded()
		}
		return nil
	}
	if b.metrics != nil {
		b.metrics.IncrementRecordsBuilt()
	}
	return &Record{
		Name:          grp.Name,
		Group:         grp,
		ScanTimestamp: b.scanTimestamp(ctx, grp.Name),
		MachineCode:   code,
	}
}

// scanTimestamp parses yyyyMMddHHmmssSSS from name. A name that does not
// follow the pattern falls back to the current time and never aborts the
// build.
func (b *Builder) scanTimestamp(ctx context.Context, name string) time.Time {
	if t, ok := ParseScanTimestamp(name, b.location); ok {
		return t
	}
	return requestcontext.Now(ctx)
}

// ParseScanTimestamp parses a 17 digit yyyyMMddHHmmssSSS name in loc.
func ParseScanTimestamp(name string, loc *time.Location) (time.Time, bool) {
	if len(name) != len(timestampLayout)+3 {
		return time.Time{}, false
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return time.Time{}, false
		}
	}
	t, err := time.ParseInLocation(timestampLayout, name[:len(timestampLayout)], loc)
	if err != nil {
		return time.Time{}, false
	}
	millis, err := strconv.Atoi(name[len(timestampLayout):])
	if err != nil {
		return time.Time{}, false
	}
	return t.Add(time.Duration(millis) * time.Millisecond), true
}
