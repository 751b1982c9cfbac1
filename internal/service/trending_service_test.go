package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/user/curtas/internal/model"
)

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) InvalidateCarousels() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func TestUpdateTrendingScores(t *testing.T) {
	store := &fakeTrendingStore{rows: []model.SeriesEngagement{
		{SeriesID: 1, Views: 1000, Likes: 100},
		{SeriesID: 2, Views: 10},
		{SeriesID: 3, Shares: 1},
	}, failIDs: map[int]bool{3: true}}
	inv := &countingInvalidator{}
	svc := NewTrendingService(store, inv, 0)

	n, err := svc.UpdateTrendingScores(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "series 3")
	require.Equal(t, 2, n)
	require.InDelta(t, 1.5, store.scores[1], 1e-9)
	require.InDelta(t, 0.01, store.scores[2], 1e-9)
	require.Equal(t, 1, inv.n)
}

func TestUpdateTrendingScoresStopsOnCancel(t *testing.T) {
	store := &fakeTrendingStore{rows: []model.SeriesEngagement{{SeriesID: 1, Views: 10}, {SeriesID: 2, Views: 20}}}
	inv := &countingInvalidator{}
	svc := NewTrendingService(store, inv, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := svc.UpdateTrendingScores(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, n)
	require.Empty(t, store.scores)
	require.Zero(t, inv.n)
}
