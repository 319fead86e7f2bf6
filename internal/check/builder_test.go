package check

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkscan/internal/ocr"
	"checkscan/internal/platform/metrics"
	"checkscan/internal/scan"
	"checkscan/pkg/requestcontext"
)

func group(name string) scan.Group {
	return scan.Group{Name: name, Disposition: name + ".1D", Recto: name + ".1R", Verso: name + ".1V"}
}

func codes(codes map[string]string) ocr.Extractor {
	return ocr.ExtractorFunc(func(_ context.Context, path string) string {
		return codes[path]
	})
}

func newTestBuilder(extractor ocr.Extractor, m *metrics.Metrics) *Builder {
	return NewBuilder(extractor,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(m),
		WithWorkers(3),
		WithLocation(time.UTC),
	)
}

func TestBuilder_Build(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	b := newTestBuilder(codes(map[string]string{
		"20240101090000000.1D": "  1234567\n",
		"20240101090000001.1D": " \n\t",
		"20240101090000003.1D": "7654321",
	}), m)

	incomplete := group("20240101090000004")
	incomplete.Verso = ""

	records, err := b.Build(context.Background(), []scan.Group{
		group("20240101090000000"),
		group("20240101090000001"), // blank code
		group("20240101090000002"), // unreadable, extractor returns ""
		group("20240101090000003"),
		incomplete,
	})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "20240101090000000", records[0].Name)
	assert.Equal(t, "1234567", records[0].MachineCode)
	assert.Equal(t, group("20240101090000000"), records[0].Group)
	assert.Equal(t, "7654321", records[1].MachineCode)

	for _, r := range records {
		assert.Empty(t, r.Recipient)
		assert.Empty(t, r.Amount)
		assert.Nil(t, r.CaptureDate)
		assert.False(t, r.Valid())
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsBuilt))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsDiscarded))
}

func TestBuilder_ScanTimestamp(t *testing.T) {
	fallback := time.Date(2030, 6, 1, 8, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fallback)
	b := newTestBuilder(ocr.ExtractorFunc(func(context.Context, string) string { return "1" }), nil)

	records, err := b.Build(ctx, []scan.Group{
		group("20240315143015123"),
		group("20241345000000000"), // month 13
		group("scan-from-driver"),
	})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, time.Date(2024, 3, 15, 14, 30, 15, 123_000_000, time.UTC), records[0].ScanTimestamp)
	assert.Equal(t, fallback, records[1].ScanTimestamp)
	assert.Equal(t, fallback, records[2].ScanTimestamp)
}

func TestBuilder_RunsInParallel(t *testing.T) {
	var inFlight, peak int32
	extractor := ocr.ExtractorFunc(func(context.Context, string) string {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "1234567"
	})
	b := newTestBuilder(extractor, nil)

	groups := make([]scan.Group, 9)
	for i := range groups {
		groups[i] = group("g" + string(rune('a'+i)))
	}
	records, err := b.Build(context.Background(), groups)
	require.NoError(t, err)

	require.Len(t, records, 9)
	for i, r := range records {
		assert.Equal(t, groups[i].Name, r.Name, "order follows the input groups")
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
}

func TestBuilder_CancelledMidBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	extractor := ocr.ExtractorFunc(func(context.Context, string) string {
		if atomic.AddInt32(&calls, 1) == 2 {
			cancel()
		}
		return "1234567"
	})
	b := NewBuilder(extractor, WithWorkers(1), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	records, err := b.Build(ctx, []scan.Group{group("a"), group("b"), group("c"), group("d")})

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, records)
	assert.Less(t, atomic.LoadInt32(&calls), int32(4), "no new extraction starts after cancellation")
}

func TestParseScanTimestamp(t *testing.T) {
	_, ok := ParseScanTimestamp("2024010109000000", time.UTC)
	assert.False(t, ok, "too short")
	_, ok = ParseScanTimestamp("2024010109000000x", time.UTC)
	assert.False(t, ok, "non digit")
	ts, ok := ParseScanTimestamp("20240229235959999", time.UTC)
	assert.True(t, ok)
	assert.Equal(t, 999*time.Millisecond, time.Duration(ts.Nanosecond()))
}
