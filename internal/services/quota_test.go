package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamevault/api-gateway/internal/testutil"
)

func TestQuotaDisabledIsAdvisory(t *testing.T) {
	store := new(testutil.MockStore)
	q := NewQuotaEnforcer(store, false, nil)

	reserved, err := q.Reserve(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, reserved)
	store.AssertNotCalled(t, "ReserveUsage")
}

func TestQuotaReserve(t *testing.T) {
	ok, spent, broken := uuid.New(), uuid.New(), uuid.New()
	store := new(testutil.MockStore)
	store.On("ReserveUsage", ok).Return(true, nil)
	store.On("ReserveUsage", spent).Return(false, nil)
	store.On("ReserveUsage", broken).Return(false, errors.New("timeout"))

	metrics := NewMetricsCollector(prometheus.NewRegistry())
	q := NewQuotaEnforcer(store, true, metrics)
	ctx := context.Background()

	reserved, err := q.Reserve(ctx, ok)
	require.NoError(t, err)
	assert.True(t, reserved)

	_, err = q.Reserve(ctx, spent)
	requireKind(t, err, KindQuotaExceeded)
	assert.Equal(t, "Monthly quota exceeded", err.(*Error).Message)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.quotaRejections))

	_, err = q.Reserve(ctx, broken)
	requireKind(t, err, KindInternal)
}
