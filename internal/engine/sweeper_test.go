package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicknet-il/support-bot-be/internal/models"
	"github.com/quicknet-il/support-bot-be/internal/repositories"
)

func TestSweeper_ClosesIdleWebchat(t *testing.T) {
	conversations := repositories.NewMemoryConversationRepo()
	ctx := context.Background()

	conv, _, err := conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)

	// Sub-timeout sweep leaves it alone.
	sweeper := NewSweeper(conversations, 30*time.Minute, 24*time.Hour)
	assert.Equal(t, 0, sweeper.CloseIdle(ctx))

	// With a tiny timeout the same conversation counts as idle.
	time.Sleep(5 * time.Millisecond)
	fast := NewSweeper(conversations, time.Millisecond, time.Millisecond)
	assert.Equal(t, 1, fast.CloseIdle(ctx))

	got, err := conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)

	// closing note on the transcript
	msgs, err := conversations.RecentMessages(ctx, conv.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
}

func TestSweeper_LeavesEscalatedAlone(t *testing.T) {
	conversations := repositories.NewMemoryConversationRepo()
	ctx := context.Background()

	conv, _, err := conversations.GetOrCreate(ctx, "v1", models.ChannelWebchat)
	require.NoError(t, err)
	require.NoError(t, conversations.Transition(ctx, conv.ID, models.StatusEscalated))

	time.Sleep(5 * time.Millisecond)
	sweeper := NewSweeper(conversations, time.Millisecond, time.Millisecond)
	assert.Equal(t, 0, sweeper.CloseIdle(ctx))

	got, err := conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, got.Status)
}
