package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperrors "github.com/iRail/occupancy-api/errors"
	"github.com/iRail/occupancy-api/internal/audit"
	"github.com/iRail/occupancy-api/logger"
	"github.com/iRail/occupancy-api/models/occupancy/validation"
	"github.com/iRail/occupancy-api/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

const testVehicleResourceURL = "https://api.irail.be/vehicle/?id=BE.NMBS."

// Mock OccupancyStore
type MockOccupancyStore struct {
	mock.Mock
}

func (m *MockOccupancyStore) SaveFeedback(ctx context.Context, feedback *types.OccupancyFeedback) error {
	args := m.Called(ctx, feedback)
	return args.Error(0)
}

// Mock FeedbackAuditor
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) LogSuccess(record *types.OccupancyFeedback, tag audit.ClientTag) {
	m.Called(record, tag)
}

func (m *MockAuditor) LogFailure(err error, raw types.OccupancySubmission, tag audit.ClientTag) {
	m.Called(err, raw, tag)
}

// Mock FeedbackPublisher
type MockFeedbackPublisher struct {
	mock.Mock
}

func (m *MockFeedbackPublisher) PublishFeedback(ctx context.Context, feedback *types.OccupancyFeedback) error {
	args := m.Called(ctx, feedback)
	return args.Error(0)
}

type ingestorFixture struct {
	ingestor  *FeedbackIngestor
	store     *MockOccupancyStore
	auditor   *MockAuditor
	publisher *MockFeedbackPublisher
}

func newIngestorFixture(t *testing.T, withPublisher bool) *ingestorFixture {
	t.Helper()
	resetIngestMetricsForTesting()

	f := &ingestorFixture{
		store:     new(MockOccupancyStore),
		auditor:   new(MockAuditor),
		publisher: new(MockFeedbackPublisher),
	}

	var publisher FeedbackPublisher
	if withPublisher {
		publisher = f.publisher
	}
	f.ingestor = NewFeedbackIngestor(validation.NewValidator(false), f.store, f.auditor, publisher, testVehicleResourceURL)

	t.Cleanup(func() {
		f.store.AssertExpectations(t)
		f.auditor.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})
	return f
}

const validBody = `{
	"connection": "http://irail.be/connections/8841004/20240315/IC1832",
	"from": "http://irail.be/stations/NMBS/008841004",
	"date": "20240315",
	"vehicle": "http://irail.be/vehicle/IC1832",
	"occupancy": "https://api.irail.be/terms/high"
}`

func postRequest(body, userAgent string) IngestRequest {
	return IngestRequest{Method: "POST", Body: strings.NewReader(body), UserAgent: userAgent}
}

func TestIngest_Success(t *testing.T) {
	f := newIngestorFixture(t, true)
	tag := audit.MaskClientTag("SpitsGids/3.1 (alice@domain.be)")

	f.store.On("SaveFeedback", mock.Anything, mock.AnythingOfType("*types.OccupancyFeedback")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*types.OccupancyFeedback).ID = "stored-id"
		}).
		Return(nil).Once()
	f.auditor.On("LogSuccess", mock.AnythingOfType("*types.OccupancyFeedback"), tag).Once()
	f.publisher.On("PublishFeedback", mock.Anything, mock.AnythingOfType("*types.OccupancyFeedback")).Return(nil).Once()

	result, err := f.ingestor.Ingest(context.Background(), postRequest(validBody, "SpitsGids/3.1 (alice@domain.be)"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.irail.be/vehicle/?id=BE.NMBS.IC1832", result.Location)
	assert.Equal(t, "stored-id", result.Feedback.ID)
	assert.Equal(t, types.OccupancyHigh, result.Feedback.Occupancy)
	assert.False(t, result.Feedback.HasDestination())

	assert.Equal(t, float64(1), testutil.ToFloat64(f.ingestor.metrics.submissions.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.ingestor.metrics.reports.WithLabelValues("high")))
}

func TestIngest_AuditsMaskedUserAgent(t *testing.T) {
	f := newIngestorFixture(t, false)

	f.store.On("SaveFeedback", mock.Anything, mock.Anything).Return(nil).Once()
	f.auditor.On("LogSuccess", mock.Anything, mock.Anything).Once()

	_, err := f.ingestor.Ingest(context.Background(), postRequest(validBody, "bot (abcd@defg.be)"))
	require.NoError(t, err)

	tag := f.auditor.Calls[0].Arguments.Get(1).(audit.ClientTag)
	assert.Equal(t, "bot (a***@d***.be)", tag.String())
	assert.NotContains(t, tag.String(), "abcd@defg.be")
}

func TestIngest_PublishFailureDoesNotFailSubmission(t *testing.T) {
	f := newIngestorFixture(t, true)

	f.store.On("SaveFeedback", mock.Anything, mock.Anything).Return(nil).Once()
	f.auditor.On("LogSuccess", mock.Anything, mock.Anything).Once()
	f.publisher.On("PublishFeedback", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	result, err := f.ingestor.Ingest(context.Background(), postRequest(validBody, "agent"))
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestIngest_PublishesAfterRequestCancelled(t *testing.T) {
	f := newIngestorFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())

	f.store.On("SaveFeedback", mock.Anything, mock.Anything).Return(nil).Once().
		Run(func(mock.Arguments) { cancel() })
	f.auditor.On("LogSuccess", mock.Anything, mock.Anything).Once()
	f.publisher.On("PublishFeedback", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(nil).Once()

	_, err := f.ingestor.Ingest(ctx, postRequest(validBody, "agent"))
	require.NoError(t, err)
}

func TestIngest_MethodNotAllowed(t *testing.T) {
	for _, method := range []string{"GET", "PUT", "DELETE", "OPTIONS", "post"} {
		t.Run(method, func(t *testing.T) {
			f := newIngestorFixture(t, true)
			f.auditor.On("LogFailure", mock.Anything, types.OccupancySubmission(nil), mock.Anything).Once()

			_, err := f.ingestor.Ingest(context.Background(), IngestRequest{
				Method: method,
				Body:   strings.NewReader(validBody),
			})

			appErr := apperrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, apperrors.MethodNotAllowedError, appErr.Type)
			assert.Equal(t, 405, appErr.GetHTTPStatus())
			f.store.AssertNotCalled(t, "SaveFeedback", mock.Anything, mock.Anything)
		})
	}
}

func TestIngest_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "connection=x&from=y"},
		{"array", `["connection"]`},
		{"string", `"hello"`},
		{"empty", ""},
		{"truncated", `{"connection": "http://irail.be`},
		{"trailing data", validBody + " this is not json {"},
		{"second object", validBody + validBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestorFixture(t, false)
			f.auditor.On("LogFailure", mock.Anything, types.OccupancySubmission(nil), mock.Anything).Once()

			_, err := f.ingestor.Ingest(context.Background(), postRequest(tt.body, "agent"))

			appErr := apperrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, apperrors.MissingFieldsError, appErr.Type)
			assert.Equal(t, 400, appErr.GetHTTPStatus())
		})
	}
}

func TestIngest_EmptyDestinationIsForwarded(t *testing.T) {
	f := newIngestorFixture(t, false)
	body := strings.Replace(validBody, `"date"`, `"to": "", "date"`, 1)

	f.store.On("SaveFeedback", mock.Anything, mock.MatchedBy(func(fb *types.OccupancyFeedback) bool {
		return fb.To != nil && *fb.To == ""
	})).Return(nil).Once()
	f.auditor.On("LogSuccess", mock.MatchedBy(func(fb *types.OccupancyFeedback) bool {
		to, ok := fb.PostInfo()[types.FieldTo]
		return ok && to == ""
	}), mock.Anything).Once()

	_, err := f.ingestor.Ingest(context.Background(), postRequest(body, "agent"))
	require.NoError(t, err)
}

func TestIngest_TrailingWhitespaceAccepted(t *testing.T) {
	f := newIngestorFixture(t, false)

	f.store.On("SaveFeedback", mock.Anything, mock.Anything).Return(nil).Once()
	f.auditor.On("LogSuccess", mock.Anything, mock.Anything).Once()

	result, err := f.ingestor.Ingest(context.Background(), postRequest(validBody+"\n\t \n", "agent"))
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestIngest_NilBody(t *testing.T) {
	f := newIngestorFixture(t, false)
	f.auditor.On("LogFailure", mock.Anything, types.OccupancySubmission(nil), mock.Anything).Once()

	_, err := f.ingestor.Ingest(context.Background(), IngestRequest{Method: "POST"})
	assert.Equal(t, apperrors.MissingFieldsError, apperrors.As(err).Type)
}

func TestIngest_NonStringValuesAreAbsent(t *testing.T) {
	f := newIngestorFixture(t, false)
	body := `{
		"connection": "http://irail.be/connections/8841004/20240315/IC1832",
		"from": "http://irail.be/stations/NMBS/008841004",
		"date": 20240315,
		"vehicle": null,
		"occupancy": "https://api.irail.be/terms/low"
	}`

	f.auditor.On("LogFailure", mock.Anything, mock.Anything, mock.Anything).Once()

	_, err := f.ingestor.Ingest(context.Background(), postRequest(body, "agent"))
	appErr := apperrors.As(err)
	assert.Equal(t, apperrors.MissingFieldsError, appErr.Type)
	assert.Contains(t, appErr.Detail, "date")
	assert.Contains(t, appErr.Detail, "vehicle")

	raw := f.auditor.Calls[0].Arguments.Get(1).(types.OccupancySubmission)
	assert.NotContains(t, raw, "date")
	assert.NotContains(t, raw, "vehicle")
	assert.Equal(t, "https://api.irail.be/terms/low", raw["occupancy"])
}

func TestIngest_ValidationFailureAuditsRawSubmission(t *testing.T) {
	f := newIngestorFixture(t, true)
	body := strings.Replace(validBody, "http://irail.be/vehicle/IC1832", "IC1832", 1)

	f.auditor.On("LogFailure", mock.Anything, mock.MatchedBy(func(raw types.OccupancySubmission) bool {
		return raw["vehicle"] == "IC1832"
	}), mock.Anything).Once()

	_, err := f.ingestor.Ingest(context.Background(), postRequest(body, "agent"))

	appErr := apperrors.As(err)
	assert.Equal(t, apperrors.InvalidVehicleIDError, appErr.Type)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.ingestor.metrics.submissions.WithLabelValues("invalid_vehicle_id")))
}

func TestIngest_StoreUnavailable(t *testing.T) {
	f := newIngestorFixture(t, true)
	storeErr := errors.New("connection refused")

	f.store.On("SaveFeedback", mock.Anything, mock.Anything).Return(storeErr).Once()
	f.auditor.On("LogFailure", mock.MatchedBy(func(err error) bool {
		return apperrors.As(err).Type == apperrors.StoreUnavailableError
	}), mock.Anything, mock.Anything).Once()

	_, err := f.ingestor.Ingest(context.Background(), postRequest(validBody, "agent"))

	appErr := apperrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.StoreUnavailableError, appErr.Type)
	assert.Equal(t, 503, appErr.GetHTTPStatus())
	assert.ErrorIs(t, err, storeErr)
	f.auditor.AssertNotCalled(t, "LogSuccess", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishFeedback", mock.Anything, mock.Anything)
}

func TestIngest_OneAuditEntryPerAttempt(t *testing.T) {
	f := newIngestorFixture(t, false)
	bodies := []string{validBody, `{}`, "garbage", validBody}

	f.store.On("SaveFeedback", mock.Anything, mock.Anything).Return(nil).Twice()
	f.auditor.On("LogSuccess", mock.Anything, mock.Anything).Twice()
	f.auditor.On("LogFailure", mock.Anything, mock.Anything, mock.Anything).Twice()

	for _, body := range bodies {
		_, _ = f.ingestor.Ingest(context.Background(), postRequest(body, "agent"))
	}
	assert.Len(t, f.auditor.Calls, len(bodies))
}

func TestVehicleLocation(t *testing.T) {
	f := newIngestorFixture(t, false)

	assert.Equal(t, testVehicleResourceURL+"IC1832", f.ingestor.VehicleLocation("http://irail.be/vehicle/IC1832"))
	assert.Equal(t, testVehicleResourceURL+"S11793", f.ingestor.VehicleLocation("http://irail.be/vehicle/S11793"))
}
