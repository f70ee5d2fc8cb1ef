package services

import (
	"context"

	"github.com/google/uuid"
)

// QuotaStore is the part of the store the enforcer needs.
type QuotaStore interface {
	ReserveUsage(ctx context.Context, userID uuid.UUID) (bool, error)
}

// QuotaEnforcer refuses metered requests once a user's monthly allowance is
// spent. When disabled the quota is advisory only.
type QuotaEnforcer struct {
	store   QuotaStore
	enabled bool
	metrics *MetricsCollector
}

func NewQuotaEnforcer(store QuotaStore, enabled bool, metrics *MetricsCollector) *QuotaEnforcer {
	return &QuotaEnforcer{store: store, enabled: enabled, metrics: metrics}
}

func (q *QuotaEnforcer) Enabled() bool { return q.enabled }

// Reserve takes one unit for userID. It reports whether a unit was taken; a
// false result with a nil error means enforcement is off. The caller must
// hand the flag to the recorder so the unit is released if the request does
// not succeed.
func (q *QuotaEnforcer) Reserve(ctx context.Context, userID uuid.UUID) (bool, error) {
	if !q.enabled {
		return false, nil
	}
	ok, err := q.store.ReserveUsage(ctx, userID)
	if err != nil {
		return false, internal("reserve quota", err)
	}
	if !ok {
		if q.metrics != nil {
			q.metrics.RecordQuotaRejection()
		}
		return false, newError(KindQuotaExceeded, "Monthly quota exceeded")
	}
	return true, nil
}
