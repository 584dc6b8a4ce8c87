package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/pxwallet/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelation(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-7")
	ctx = obscontext.WithActor(ctx, "user", "u-1")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-7", fields["request_id"])
		assert.Equal(t, "user", fields["actor_type"])
		assert.Equal(t, "u-1", fields["actor_id"])
	}
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "UPDATE", statementVerb("update wallets set balance = balance - ?"))
	assert.Equal(t, "SELECT", statementVerb("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UNKNOWN", statementVerb(""))
}
