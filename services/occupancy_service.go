package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	apperrors "github.com/iRail/occupancy-api/errors"
	"github.com/iRail/occupancy-api/internal/audit"
	"github.com/iRail/occupancy-api/internal/store"
	"github.com/iRail/occupancy-api/logger"
	"github.com/iRail/occupancy-api/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// FeedbackValidator turns an untrusted submission into a validated report.
type FeedbackValidator interface {
	Validate(sub types.OccupancySubmission) (*types.OccupancyFeedback, error)
}

// FeedbackAuditor records every submission attempt.
type FeedbackAuditor interface {
	LogSuccess(record *types.OccupancyFeedback, tag audit.ClientTag)
	LogFailure(err error, raw types.OccupancySubmission, tag audit.ClientTag)
}

// FeedbackPublisher announces accepted reports on the live feed.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, feedback *types.OccupancyFeedback) error
}

// IngestRequest is one submission as received by the transport.
type IngestRequest struct {
	Method    string
	Body      io.Reader
	UserAgent string
}

// IngestResult describes an accepted submission.
type IngestResult struct {
	Feedback *types.OccupancyFeedback
	// Location is the canonical URL of the reported vehicle.
	Location string
}

type ingestMetrics struct {
	submissions *prometheus.CounterVec
	reports     *prometheus.CounterVec
}

var (
	ingestMetricsInstance *ingestMetrics
	ingestMetricsOnce     sync.Once
	ingestRegistry        = prometheus.DefaultRegisterer
)

func newIngestMetrics() *ingestMetrics {
	ingestMetricsOnce.Do(func() {
		ingestMetricsInstance = &ingestMetrics{
			submissions: promauto.With(ingestRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "occupancy_submissions_total",
				Help: "Occupancy submissions by outcome",
			}, []string{"outcome"}),
			reports: promauto.With(ingestRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "occupancy_reports_total",
				Help: "Accepted occupancy reports by level",
			}, []string{"level"}),
		}
	})
	return ingestMetricsInstance
}

func resetIngestMetricsForTesting() {
	ingestRegistry = prometheus.NewRegistry()
	ingestMetricsInstance = nil
	ingestMetricsOnce = sync.Once{}
}

// FeedbackIngestor runs a single submission through validation, storage and
// auditing. Exactly one audit entry is written per call to Ingest.
type FeedbackIngestor struct {
	validator          FeedbackValidator
	store              store.OccupancyStore
	auditor            FeedbackAuditor
	publisher          FeedbackPublisher
	vehicleResourceURL string
	metrics            *ingestMetrics
	log                *zap.SugaredLogger
}

// NewFeedbackIngestor creates a FeedbackIngestor. publisher may be nil when
// the live feed is disabled.
func NewFeedbackIngestor(
	validator FeedbackValidator,
	feedbackStore store.OccupancyStore,
	auditor FeedbackAuditor,
	publisher FeedbackPublisher,
	vehicleResourceURL string,
) *FeedbackIngestor {
	return &FeedbackIngestor{
		validator:          validator,
		store:              feedbackStore,
		auditor:            auditor,
		publisher:          publisher,
		vehicleResourceURL: vehicleResourceURL,
		metrics:            newIngestMetrics(),
		log:                logger.GetLogger().Named("occupancy"),
	}
}

// Ingest validates and stores one submission. Returned errors are always
// *errors.AppError.
func (s *FeedbackIngestor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	tag := audit.MaskClientTag(req.UserAgent)

	if req.Method != http.MethodPost {
		return nil, s.reject(apperrors.MethodNotAllowed(), nil, tag)
	}

	sub, err := decodeSubmission(req.Body)
	if err != nil {
		return nil, s.reject(apperrors.MissingFields(err.Error()), nil, tag)
	}

	feedback, err := s.validator.Validate(sub)
	if err != nil {
		return nil, s.reject(err, sub, tag)
	}

	if err := s.store.SaveFeedback(ctx, feedback); err != nil {
		return nil, s.reject(apperrors.StoreUnavailable(err), sub, tag)
	}

	s.auditor.LogSuccess(feedback, tag)
	s.metrics.submissions.WithLabelValues("accepted").Inc()
	s.metrics.reports.WithLabelValues(strings.ToLower(feedback.Occupancy.Name())).Inc()

	if s.publisher != nil {
		// the report is stored, so a cancelled request must not drop the event
		if err := s.publisher.PublishFeedback(context.WithoutCancel(ctx), feedback); err != nil {
			s.log.Warnw("Failed to publish occupancy event", "feedbackID", feedback.ID, "error", err)
		}
	}

	return &IngestResult{
		Feedback: feedback,
		Location: s.VehicleLocation(feedback.Vehicle),
	}, nil
}

// VehicleLocation maps a vehicle identifier to its public resource URL using
// the identifier's last path segment.
func (s *FeedbackIngestor) VehicleLocation(vehicle string) string {
	return s.vehicleResourceURL + path.Base(vehicle)
}

func (s *FeedbackIngestor) reject(err error, raw types.OccupancySubmission, tag audit.ClientTag) *apperrors.AppError {
	appErr := apperrors.As(err)
	s.auditor.LogFailure(appErr, raw, tag)
	s.metrics.submissions.WithLabelValues(strings.ToLower(string(appErr.Type))).Inc()
	return appErr
}

// decodeSubmission reads a JSON object. Only string values are kept: null,
// numbers, booleans and nested values are treated as absent fields. The body
// must hold that single object and nothing after it but whitespace.
func decodeSubmission(body io.Reader) (types.OccupancySubmission, error) {
	if body == nil {
		return nil, fmt.Errorf("empty body")
	}

	dec := json.NewDecoder(body)
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("body is not a JSON object: %w", err)
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("body has data after the JSON object")
	}

	sub := make(types.OccupancySubmission, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			sub[k] = s
		}
	}
	return sub, nil
}
