// Package audit writes the append-only log of occupancy submissions: one JSON
// line per attempt, accepted or not.
package audit

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iRail/occupancy-api/config"
	apperrors "github.com/iRail/occupancy-api/errors"
	"github.com/iRail/occupancy-api/logger"
	"github.com/iRail/occupancy-api/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ResourceOccupancy is the resource name written on every occupancy entry.
const ResourceOccupancy = "occupancy"

// Entry categories.
const (
	CategoryInfo     = "info"
	CategoryError    = "error"
	CategoryCritical = "critical"
)

// CriticalLevel is the zap level critical entries are written at. The audit
// encoder renders it as "critical", so the level key and the category agree.
// Audit loggers are never in development mode, so it does not panic.
const CriticalLevel = zapcore.DPanicLevel

// ClientTag is a client-identifying string (the user agent) that has been
// through the email masker. It can only be built with MaskClientTag, so the
// raw header never reaches an entry.
type ClientTag struct {
	masked string
}

// MaskClientTag masks email addresses in userAgent.
func MaskClientTag(userAgent string) ClientTag {
	return ClientTag{masked: logger.MaskEmailAddress(userAgent)}
}

// String returns the masked text.
func (t ClientTag) String() string {
	return t.masked
}

var (
	writeFailures     prometheus.Counter
	writeFailuresOnce sync.Once
)

func writeFailureCounter() prometheus.Counter {
	writeFailuresOnce.Do(func() {
		writeFailures = promauto.NewCounter(prometheus.CounterOpts{
			Name: "occupancy_audit_write_failures_total",
			Help: "Audit entries that could not be written to the sink",
		})
	})
	return writeFailures
}

// Logger writes audit entries. Failing to write is never reported to the
// caller: the audit trail is a best-effort side channel.
type Logger struct {
	log      *zap.Logger
	resource string
	loc      *time.Location
	now      func() time.Time
	closeFn  func()
}

// New opens the sink configured in cfg. When the sink cannot be opened the
// logger discards entries and a warning is written to the application log.
func New(cfg config.AuditConfig) *Logger {
	app := logger.GetLogger().Named("audit")

	ws, closeFn, err := openSink(cfg.LogPath)
	if err != nil {
		app.Warnw("Audit sink unavailable, submissions will not be audited",
			"path", cfg.LogPath, "error", err)
		return NewWithCore(zapcore.NewNopCore(), cfg.Location())
	}

	sink := &bestEffortSyncer{ws: ws, onErr: func(err error) {
		writeFailureCounter().Inc()
		app.Warnw("Audit write failed", "error", err)
	}}

	l := NewWithCore(zapcore.NewCore(newEncoder(), sink, zapcore.InfoLevel), cfg.Location())
	l.closeFn = closeFn
	return l
}

// NewWithCore builds a Logger on an existing zap core.
func NewWithCore(core zapcore.Core, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{
		log:      zap.New(core),
		resource: ResourceOccupancy,
		loc:      loc,
		now:      time.Now,
		closeFn:  func() {},
	}
}

func newEncoder() zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "resource"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = encodeLevel
	encCfg.CallerKey = zapcore.OmitKey
	encCfg.StacktraceKey = zapcore.OmitKey
	return zapcore.NewJSONEncoder(encCfg)
}

func encodeLevel(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if lvl == CriticalLevel {
		enc.AppendString(CategoryCritical)
		return
	}
	zapcore.LowercaseLevelEncoder(lvl, enc)
}

func openSink(path string) (zapcore.WriteSyncer, func(), error) {
	if path != "stdout" && path != "stderr" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}
	return zap.Open(path)
}

// LogSuccess records an accepted submission together with the forwarded values.
func (l *Logger) LogSuccess(record *types.OccupancyFeedback, tag ClientTag) {
	defer l.recoverPanic()

	l.log.Info(l.resource,
		zap.String("category", CategoryInfo),
		zap.String("querytype", l.resource),
		zap.String("querytime", l.now().In(l.loc).Format(time.RFC3339)),
		zap.Any("post", record.PostInfo()),
		zap.String("user_agent", tag.String()),
	)
}

// LogFailure records a rejected submission. raw may be nil when the body never
// decoded or was never read. Errors with a code of 500 or more are critical and
// written at CriticalLevel; the rest at error level.
func (l *Logger) LogFailure(err error, raw types.OccupancySubmission, tag ClientTag) {
	defer l.recoverPanic()

	appErr := apperrors.As(err)
	code := appErr.GetHTTPStatus()
	category, level := CategoryError, zapcore.ErrorLevel
	if code >= http.StatusInternalServerError {
		category, level = CategoryCritical, CriticalLevel
	}

	l.log.Log(level, l.resource,
		zap.String("category", category),
		zap.String("querytype", l.resource),
		zap.String("querytime", l.now().In(l.loc).Format(time.RFC3339)),
		zap.String("error", appErr.Message),
		zap.Int("code", code),
		zap.Any("query", raw),
		zap.String("user_agent", tag.String()),
	)
}

// Close flushes and releases the sink.
func (l *Logger) Close() error {
	err := l.log.Sync()
	l.closeFn()
	return err
}

func (l *Logger) recoverPanic() {
	if r := recover(); r != nil {
		writeFailureCounter().Inc()
		logger.GetLogger().Named("audit").Errorw("Audit logging panicked", "panic", r)
	}
}

// bestEffortSyncer swallows write and sync errors after reporting them.
type bestEffortSyncer struct {
	ws    zapcore.WriteSyncer
	onErr func(error)
}

func (s *bestEffortSyncer) Write(p []byte) (int, error) {
	if _, err := s.ws.Write(p); err != nil {
		s.onErr(err)
	}
	return len(p), nil
}

func (s *bestEffortSyncer) Sync() error {
	if err := s.ws.Sync(); err != nil {
		s.onErr(err)
	}
	return nil
}
