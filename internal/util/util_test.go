package util

import (
	"context"
	"errors"
	"testing"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sample struct {
	Name     string `validate:"required"`
	Quantity int    `validate:"gt=0"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(&sample{Name: "a", Quantity: 1}))

	err := ValidateStruct(&sample{})
	require.ErrorIs(t, err, models.ErrValidation)

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 2)
	assert.Contains(t, verr.Fields[1], "gt=0")
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	defer SetLogger(zap.NewNop())

	assert.Error(t, InitLogger("development", "loud"))
	require.NoError(t, InitLogger("production", "warn"))
	assert.False(t, GetLogger().Core().Enabled(zap.InfoLevel))
	assert.True(t, GetLogger().Core().Enabled(zap.WarnLevel))
}

func TestInitTracerWithoutExporter(t *testing.T) {
	tp, err := InitTracer(TracerConfig{ServiceName: "test", Environment: "test", SampleRatio: 1})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "op")
	assert.True(t, span.SpanContext().IsSampled())
	FinishSpan(span, errors.New("boom"))

	require.NoError(t, tp.Shutdown(context.Background()))
}
