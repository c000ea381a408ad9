package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PravinPK/places-monitor/internal/monitor/store"
	"github.com/PravinPK/places-monitor/internal/monitor/store/memory"
	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

func TestStringSetStore_DefaultUntilWritten(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStringSetStore()

	got, err := s.GetStringSet(ctx, store.KeyMonitoringFences, nil)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.PutStringSet(ctx, store.KeyMonitoringFences, []string{}))
	got, err = s.GetStringSet(ctx, store.KeyMonitoringFences, []string{"default"})
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, 1, s.Writes(store.KeyMonitoringFences))
}

func TestStringSetStore_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStringSetStore()

	in := []string{"a", "b"}
	require.NoError(t, s.PutStringSet(ctx, store.KeyEnteredFences, in))
	in[0] = "mutated"

	got, err := s.GetStringSet(ctx, store.KeyEnteredFences, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, got)

	got[1] = "mutated"
	again, _ := s.GetStringSet(ctx, store.KeyEnteredFences, nil)
	require.Equal(t, []string{"a", "b"}, again)
}

func TestTransitionEventStore_NewestFirstAndPrune(t *testing.T) {
	ctx := context.Background()
	s := memory.NewTransitionEventStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.RecordTransition(ctx, store.TransitionRecord{
			RegionID:   id,
			Kind:       types.TransitionEnter,
			RecordedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	recent, err := s.RecentTransitions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "c", recent[0].RegionID)
	require.Equal(t, "b", recent[1].RegionID)

	deleted, err := s.PruneOlderThan(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)

	events := s.Events()
	require.Len(t, events, 1)
	require.Equal(t, "c", events[0].RegionID)
}

func TestTransitionEventStore_StampsMissingTime(t *testing.T) {
	s := memory.NewTransitionEventStore()
	require.NoError(t, s.RecordTransition(context.Background(), store.TransitionRecord{RegionID: "a", Kind: types.TransitionExit}))
	require.False(t, s.Events()[0].RecordedAt.IsZero())
}
