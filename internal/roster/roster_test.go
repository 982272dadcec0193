package roster

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlings/pkg/models"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	for i := 0; i < 12; i++ {
		s.Add("u1", models.RosterMember{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("Chatling %d", i)})
	}

	team, err := s.Active(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, team, ActiveLimit)
	assert.Equal(t, "c0", team[0].ID)

	m, err := s.Get(ctx, "u1", "c11")
	require.NoError(t, err)
	assert.Equal(t, "Chatling 11", m.Name)

	_, err = s.Get(ctx, "u2", "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	empty, err := s.Active(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
