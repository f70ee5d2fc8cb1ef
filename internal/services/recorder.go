package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/models"
)

// RecorderStore is the part of the store the recorder writes to.
type RecorderStore interface {
	LogRequest(ctx context.Context, entry *models.RequestLog) error
	IncrementUsage(ctx context.Context, userID uuid.UUID) error
	ReleaseUsage(ctx context.Context, userID uuid.UUID) error
	TouchAPIKey(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Column widths of request_logs.endpoint and request_logs.method.
const (
	maxEndpointLen = 512
	maxMethodLen   = 16
)

// Outcome is everything known about a finished metered request.
type Outcome struct {
	// Principal is set when authentication succeeded.
	Principal Principal
	// Attempt is set when authentication failed.
	Attempt  *AuthError
	Endpoint string
	Method   string
	Status   int
	Latency  time.Duration
	// Reserved means the quota enforcer already counted this request.
	Reserved bool
}

// Recorder writes the accounting side of a metered request: the log entry,
// the quota increment and the key's last use.
type Recorder struct {
	store   RecorderStore
	metrics *MetricsCollector
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(store RecorderStore, metrics *MetricsCollector, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:   store,
		metrics: metrics,
		logger:  logger,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// Record never fails. Write errors are logged and counted; each write is
// attempted independently of the others.
func (r *Recorder) Record(ctx context.Context, o Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	now := r.now().UTC()
	userID, keyID := attribution(o)

	entry := &models.RequestLog{
		UserID:         userID,
		APIKeyID:       keyID,
		Endpoint:       clamp(o.Endpoint, maxEndpointLen),
		Method:         clamp(o.Method, maxMethodLen),
		StatusCode:     o.Status,
		ResponseTimeMs: o.Latency.Milliseconds(),
		CreatedAt:      now,
	}
	if err := r.store.LogRequest(ctx, entry); err != nil {
		r.failed(ctx, "log_request", err, o)
	}

	if r.metrics != nil {
		r.metrics.RecordRequest(o.Method, o.Status, o.Latency)
	}

	if o.Principal != nil {
		r.settleQuota(ctx, o)
	}

	if kp, ok := o.Principal.(KeyPrincipal); ok {
		if err := r.store.TouchAPIKey(ctx, kp.KeyID, now); err != nil {
			r.failed(ctx, "touch_api_key", err, o)
		}
	}
}

func (r *Recorder) settleQuota(ctx context.Context, o Outcome) {
	userID := o.Principal.UserID()
	switch success := isSuccess(o.Status); {
	case success && !o.Reserved:
		if err := r.store.IncrementUsage(ctx, userID); err != nil {
			r.failed(ctx, "increment_usage", err, o)
		}
	case !success && o.Reserved:
		if err := r.store.ReleaseUsage(ctx, userID); err != nil {
			r.failed(ctx, "release_usage", err, o)
		}
	}
}

func (r *Recorder) failed(ctx context.Context, op string, err error, o Outcome) {
	r.logger.ErrorContext(ctx, "usage recording failed",
		"op", op,
		"method", o.Method,
		"endpoint", o.Endpoint,
		"status", o.Status,
		"error", err,
	)
	if r.metrics != nil {
		r.metrics.RecordRecorderFailure(op)
	}
}

// attribution returns the owner and key a request is charged to. Refused
// keys whose owner was resolved are attributed to that owner.
func attribution(o Outcome) (*uuid.UUID, *uuid.UUID) {
	if o.Principal != nil {
		id := o.Principal.UserID()
		if kp, ok := o.Principal.(KeyPrincipal); ok {
			keyID := kp.KeyID
			return &id, &keyID
		}
		return &id, nil
	}
	if o.Attempt != nil {
		return o.Attempt.Owner, o.Attempt.KeyID
	}
	return nil, nil
}

// clamp cuts s to at most n characters of valid UTF-8 so the log insert fits
// its column on every dialect.
func clamp(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for range n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}
