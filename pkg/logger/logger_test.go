package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_RejectsUnknownLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestInit_Defaults(t *testing.T) {
	require.NoError(t, Init(Config{}))
	assert.NotNil(t, Get())
}

func TestWithContext_AddsKnownKeys(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "run-1")
	ctx = ContextWithTable(ctx, "books")
	ctx = ContextWithSink(ctx, "postgres")

	assert.Equal(t, "run-1", ctx.Value(RunIDKey))
	assert.Equal(t, "books", ctx.Value(TableKey))
	assert.Equal(t, "postgres", ctx.Value(SinkKey))
	assert.NotNil(t, WithContext(ctx))
}
