package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"checkscan/internal/audit"
	"checkscan/internal/check"
	"checkscan/internal/pipeline"
	"checkscan/internal/scan"
	"checkscan/internal/signing"
	"checkscan/internal/submission"
	"checkscan/internal/transport/http/mocks"
	dErrors "checkscan/pkg/domain-errors"
	"checkscan/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,Sessions

type HandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	service  *mocks.MockService
	sessions *mocks.MockSessions
	router   http.Handler
	health   error
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.sessions = mocks.NewMockSessions(s.ctrl)
	s.health = nil

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := New(s.service, s.sessions,
		WithLogger(logger),
		WithLocation(time.UTC),
		WithHealthCheck("redis", func(context.Context) error { return s.health }),
	)
	s.Require().NoError(err)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("checkscan_records_built_total 1\n"))
	})
	s.router = NewRouter(h, logger, metrics)
}

func (s *HandlerSuite) do(req *http.Request) int {
	return testutil.DoRequest(s.router, req).Code
}

// =============================================================================
// Session
// =============================================================================

func (s *HandlerSuite) TestSession() {
	s.Run("installs the signing context", func() {
		expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		s.sessions.EXPECT().Set(gomock.Any()).DoAndReturn(func(sc signing.Context) error {
			s.Equal("tok", sc.Token)
			s.Equal("secret", sc.Secret)
			s.Equal("HmacSHA512", sc.Algorithm)
			s.True(sc.Expiry.Equal(expiry))
			return nil
		})

		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/session", map[string]any{
			"token": "tok", "secret": "secret", "algorithm": "HmacSHA512", "expiresAt": expiry,
		})
		s.Equal(http.StatusNoContent, s.do(req))
	})

	s.Run("rejected context is invalid input", func() {
		s.sessions.EXPECT().Set(gomock.Any()).Return(signing.ErrInvalidKey)

		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/session", map[string]any{"token": "tok"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("unknown fields are refused", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/session", map[string]any{"tokn": "tok"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("clear", func() {
		s.sessions.EXPECT().Clear()
		s.Equal(http.StatusNoContent, s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/session")))
	})

	s.Run("status", func() {
		s.sessions.EXPECT().Active().Return(true)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/session"))
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "active", true)
	})
}

// =============================================================================
// Records
// =============================================================================

func (s *HandlerSuite) TestScan() {
	s.Run("returns the summary", func() {
		s.service.EXPECT().Scan(gomock.Any()).Return(pipeline.ScanSummary{Groups: 3, Records: 2, Incomplete: 1}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/records/scan"))
		s.Equal(http.StatusOK, rr.Code)
		got := testutil.UnmarshalResponse[pipeline.ScanSummary](s.T(), rr)
		s.Equal(2, got.Records)
		s.Equal(1, got.Incomplete)
	})

	s.Run("unreadable drop folder", func() {
		s.service.EXPECT().Scan(gomock.Any()).Return(pipeline.ScanSummary{}, dErrors.New(dErrors.CodeUnavailable, "scan root unreadable"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/records/scan"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, string(dErrors.CodeUnavailable))
	})
}

func (s *HandlerSuite) TestListRecords() {
	captured := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	s.service.EXPECT().Records().Return([]pipeline.RecordView{
		{
			Record: check.Record{
				Name:        "20240315143015123",
				Group:       scan.Group{Name: "20240315143015123", Disposition: "/in/a.1D", Recto: "/in/a.1R", Verso: "/in/a.1V"},
				MachineCode: "1234567",
				CaptureDate: &captured,
				Recipient:   "ACME",
				Amount:      "1250",
			},
			Valid: true,
		},
		{Record: check.Record{Name: "20240315143015124", MachineCode: "7654321"}},
	})

	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/records"))
	s.Require().Equal(http.StatusOK, rr.Code)

	got := testutil.UnmarshalResponse[RecordsResponse](s.T(), rr)
	s.Require().Len(got.Records, 2)
	s.Require().NotNil(got.Records[0].CaptureDate)
	s.Equal("2024-03-15", *got.Records[0].CaptureDate)
	s.True(got.Records[0].Valid)
	s.Equal("/in/a.1R", got.Records[0].Files.Recto)
	s.Nil(got.Records[1].CaptureDate)
	s.False(got.Records[1].Valid)
}

func (s *HandlerSuite) TestEditRecord() {
	s.Run("parses the capture date", func() {
		s.service.EXPECT().Edit("000001", gomock.Any()).DoAndReturn(func(_ string, e check.Edit) (pipeline.RecordView, error) {
			s.Require().NotNil(e.CaptureDate)
			s.True(e.CaptureDate.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
			s.Require().NotNil(e.Recipient)
			s.Equal("ACME", *e.Recipient)
			s.Nil(e.Amount)
			return pipeline.RecordView{Record: check.Record{Name: "000001", Recipient: "ACME"}}, nil
		})

		req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/records/000001", map[string]any{
			"captureDate": "2024-03-15", "recipient": "ACME",
		})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "recipient", "ACME")
	})

	s.Run("empty capture date clears it", func() {
		s.service.EXPECT().Edit("000001", gomock.Any()).DoAndReturn(func(_ string, e check.Edit) (pipeline.RecordView, error) {
			s.True(e.ClearCaptureDate)
			s.Nil(e.CaptureDate)
			return pipeline.RecordView{Record: check.Record{Name: "000001"}}, nil
		})

		req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/records/000001", map[string]any{"captureDate": ""})
		s.Equal(http.StatusOK, s.do(req))
	})

	s.Run("malformed date never reaches the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/records/000001", map[string]any{"captureDate": "15/03/2024"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("unknown record", func() {
		s.service.EXPECT().Edit("nope", gomock.Any()).Return(pipeline.RecordView{}, dErrors.New(dErrors.CodeNotFound, "unknown record"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/records/nope", map[string]any{"amount": "10"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("non-JSON body", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPatch, "/records/000001", "text/plain", "amount=10")
		s.Equal(http.StatusUnsupportedMediaType, s.do(req))
	})
}

// =============================================================================
// Submission
// =============================================================================

func (s *HandlerSuite) TestSubmit() {
	s.Run("empty body submits every valid record", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Nil()).Return(submission.BatchResult{
			BatchID:   "b1",
			Attempted: []string{"000001"},
			Outcomes:  []submission.Outcome{{Name: "000001", Message: "saved"}},
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/records/submit"))
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "failed", false)
	})

	s.Run("named records", func() {
		s.service.EXPECT().Submit(gomock.Any(), []string{"000001", "000002"}).Return(submission.BatchResult{}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/records/submit", NamesRequest{Names: []string{"000001", "000002"}})
		s.Equal(http.StatusOK, s.do(req))
	})

	s.Run("failed batch is a bad gateway with the full result", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(submission.BatchResult{
			BatchID:   "b2",
			Attempted: []string{"000001", "000002"},
			Outcomes: []submission.Outcome{
				{Name: "000001", Message: "saved"},
				{Name: "000002", HasError: true, ErrorDetail: "duplicate"},
			},
			Failed: true,
			Revert: &submission.RevertResult{Names: []string{"000001", "000002"}},
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/records/submit"))
		s.Equal(http.StatusBadGateway, rr.Code)
		got := testutil.UnmarshalResponse[submission.BatchResult](s.T(), rr)
		s.True(got.Failed)
		s.Require().NotNil(got.Revert)
		s.Equal([]string{"000001", "000002"}, got.Revert.Names)
	})

	s.Run("no session", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(submission.BatchResult{}, dErrors.Wrap(signing.ErrNoSession, dErrors.CodeUnauthorized, "no active session"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/records/submit"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("unexpected failure hides its text", func() {
		s.service.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(submission.BatchResult{}, errors.New("disk on fire"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/records/submit"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, string(dErrors.CodeInternal))
		s.NotContains(rr.Body.String(), "disk on fire")
	})
}

func (s *HandlerSuite) TestRevert() {
	s.Run("ok", func() {
		s.service.EXPECT().Revert(gomock.Any(), []string{"000001"}).Return(submission.RevertResult{Names: []string{"000001"}}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/records/revert", NamesRequest{Names: []string{"000001"}})
		s.Equal(http.StatusOK, s.do(req))
	})

	s.Run("remote refused", func() {
		s.service.EXPECT().Revert(gomock.Any(), gomock.Any()).Return(submission.RevertResult{Names: []string{"000001"}, HasError: true, ErrorDetail: "gone"}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/records/revert", NamesRequest{Names: []string{"000001"}})
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadGateway, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "errorDetail", "gone")
	})
}

func (s *HandlerSuite) TestListScanned() {
	s.Run("page parameter", func() {
		s.service.EXPECT().ListScanned(gomock.Any(), 2).Return(submission.Page{TotalPages: 3, TotalElements: 41}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/scanned?page=2"))
		s.Equal(http.StatusOK, rr.Code)
		got := testutil.UnmarshalResponse[submission.Page](s.T(), rr)
		s.Equal(3, got.TotalPages)
	})

	s.Run("defaults to the first page", func() {
		s.service.EXPECT().ListScanned(gomock.Any(), 0).Return(submission.Page{}, nil)
		s.Equal(http.StatusOK, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/scanned")))
	})

	s.Run("bad page", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/scanned?page=-1"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

// =============================================================================
// Operational endpoints
// =============================================================================

func (s *HandlerSuite) TestHealth() {
	s.Run("healthy", func() {
		s.sessions.EXPECT().Active().Return(false)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		s.Equal(http.StatusOK, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "status", "ok")
	})

	s.Run("dependency down", func() {
		s.health = errors.New("connection refused")
		s.sessions.EXPECT().Active().Return(true)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		s.Equal(http.StatusServiceUnavailable, rr.Code)
		testutil.AssertJSONContains(s.T(), rr, "status", "degraded")
	})
}

func (s *HandlerSuite) TestMetricsAndRequestID() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "checkscan_records_built_total")
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
}

func TestAuditEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := audit.NewInMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"b1", "b2", "b3"} {
		require.NoError(t, store.Append(ctx, audit.EventFromBatch(submission.BatchResult{BatchID: id}, time.Now())))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := New(mocks.NewMockService(ctrl), mocks.NewMockSessions(ctrl), WithLogger(logger), WithAuditLog(store))
	require.NoError(t, err)
	router := NewRouter(h, logger, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/audit?limit=2"))
	require.Equal(t, http.StatusOK, rr.Code)
	got := testutil.UnmarshalResponse[AuditResponse](t, rr)
	require.Len(t, got.Events, 2)
	require.Equal(t, "b3", got.Events[0].BatchID)
	require.Equal(t, audit.OutcomeCommitted, got.Events[0].Outcome)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/audit?limit=0"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
}

func TestNew_RequiresDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := New(nil, mocks.NewMockSessions(ctrl))
	require.EqualError(t, err, "service is required")
	_, err = New(mocks.NewMockService(ctrl), nil)
	require.EqualError(t, err, "sessions is required")
}
