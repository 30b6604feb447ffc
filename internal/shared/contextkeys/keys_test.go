package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKey_String(t *testing.T) {
	key := contextKey("testKey")
	assert.Equal(t, "pos-replicator context key testKey", key.String())
}

func TestContextKeys_Usage(t *testing.T) {
	ctx := context.Background()
	ctx = context.WithValue(ctx, PassIDKey, "pass-1")
	ctx = context.WithValue(ctx, CollectionKey, "bills")
	ctx = context.WithValue(ctx, DirectionKey, "forward")

	assert.Equal(t, "pass-1", ctx.Value(PassIDKey))
	assert.Equal(t, "bills", ctx.Value(CollectionKey))
	assert.Equal(t, "forward", ctx.Value(DirectionKey))
	assert.Nil(t, ctx.Value(RequestIDKey))
}
