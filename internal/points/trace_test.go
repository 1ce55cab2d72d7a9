package points

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dukerupert/famquest/internal/model"
)

func TestRedeem_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := newMemStore()
	s.seed(1, map[int64]int{1: 30, 2: 10})
	e, _ := newTestEngine(t, s)
	e.tracer = tp.Tracer("test")

	_, err := e.RedeemFamilyReward(context.Background(), 1, reward(20, model.CategoryFamily))
	require.NoError(t, err)
	_, err = e.RedeemFamilyReward(context.Background(), 1, reward(500, model.CategoryFamily))
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "points.redeem_family", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NotEmpty(t, spans[1].Events(), "failed redemption should record the error")
}
