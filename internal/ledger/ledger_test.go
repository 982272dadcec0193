package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLedgerCreditsOnce(t *testing.T) {
	ctx := context.Background()
	l := NewInMemoryLedger()

	ok, err := l.Credit(ctx, "u1", 7, ReasonConversationView, "12")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Credit(ctx, "u1", 7, ReasonConversationView, "12")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Credit(ctx, "u1", -2, ReasonParticipation, "12")
	require.NoError(t, err)
	assert.True(t, ok)

	bal, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, bal)

	bal, err = l.Balance(ctx, "u2")
	require.NoError(t, err)
	assert.Zero(t, bal)
}
