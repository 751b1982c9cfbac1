package service

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/curtas/internal/model"
)

func TestCalculateEpisodeScoreScenario(t *testing.T) {
	ep := model.EpisodeMetrics{Views: 100, LikesCount: 50, CompletionRate: 0.8}
	series := model.SeriesMetrics{TrendingScore: 40, Genre: "Drama"}
	affinity := model.Affinity{"drama": 100}

	got := CalculateEpisodeScore(ep, series, affinity)
	want := 0.8*0.35 + 0.25*50.0/150.0 + 0.4*0.2 + 0.2
	require.InDelta(t, want, got, 1e-9)
	require.InDelta(t, 0.6433, got, 1e-4)
}

func TestCalculateEpisodeScoreBounds(t *testing.T) {
	cases := []struct {
		name     string
		ep       model.EpisodeMetrics
		series   model.SeriesMetrics
		affinity model.Affinity
	}{
		{"zero", model.EpisodeMetrics{}, model.SeriesMetrics{}, nil},
		{"maxed", model.EpisodeMetrics{Views: 0, LikesCount: 10, CompletionRate: 1}, model.SeriesMetrics{TrendingScore: 100, Genre: "acao"}, model.Affinity{"acao": 100}},
		{"out of range inputs", model.EpisodeMetrics{Views: 1, LikesCount: 1, CompletionRate: 7}, model.SeriesMetrics{TrendingScore: 900, Genre: "acao"}, model.Affinity{"acao": 5000}},
		{"negative inputs", model.EpisodeMetrics{CompletionRate: -1}, model.SeriesMetrics{TrendingScore: -50, Genre: "acao"}, model.Affinity{"acao": -3}},
		{"nan completion", model.EpisodeMetrics{CompletionRate: math.NaN()}, model.SeriesMetrics{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := CalculateEpisodeScore(tc.ep, tc.series, tc.affinity)
			require.GreaterOrEqual(t, s, 0.0)
			require.LessOrEqual(t, s, 1.0+1e-12)
		})
	}
}

func TestLikeRatioUsesViewsPlusLikes(t *testing.T) {
	ep := model.EpisodeMetrics{Views: 10, LikesCount: 10}
	got := CalculateEpisodeScore(ep, model.SeriesMetrics{}, nil)
	require.InDelta(t, 0.25*0.5, got, 1e-9)
}

func TestCalculateSeriesScore(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	affinity := model.Affinity{"romance": 50}

	cases := []struct {
		name    string
		created time.Time
		want    float64
	}{
		{"fresh", now.Add(-2 * 24 * time.Hour), 0.3*0.5 + 0.2*0.2 + 0.3*0.5 + 0.2},
		{"this month", now.Add(-10 * 24 * time.Hour), 0.3*0.5 + 0.2*0.2 + 0.3*0.5 + 0.1},
		{"old", now.Add(-90 * 24 * time.Hour), 0.3*0.5 + 0.2*0.2 + 0.3*0.5},
		{"unknown age", time.Time{}, 0.3*0.5 + 0.2*0.2 + 0.3*0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := model.SeriesMetrics{TrendingScore: 50, HypeScore: 20, Genre: "Romance", CreatedAt: tc.created}
			require.InDelta(t, tc.want, CalculateSeriesScore(s, affinity, now), 1e-9)
		})
	}
}

func TestCalculateSeriesScoreBounds(t *testing.T) {
	now := time.Now()
	maxed := model.SeriesMetrics{TrendingScore: 100, HypeScore: 100, Genre: "x", CreatedAt: now}
	require.InDelta(t, 1.0, CalculateSeriesScore(maxed, model.Affinity{"x": 100}, now), 1e-9)

	over := model.SeriesMetrics{TrendingScore: 1e6, HypeScore: 1e6, Genre: "x", CreatedAt: now}
	require.LessOrEqual(t, CalculateSeriesScore(over, model.Affinity{"x": 1e6}, now), 1.0+1e-12)
	require.GreaterOrEqual(t, CalculateSeriesScore(model.SeriesMetrics{HypeScore: -10}, nil, now), 0.0)
}

func TestTrendingScore(t *testing.T) {
	require.InDelta(t, (100+5*10+3*2+10*1)/1000.0, TrendingScore(model.SeriesEngagement{Views: 100, Likes: 10, Comments: 2, Shares: 1}), 1e-9)
	require.Equal(t, 100.0, TrendingScore(model.SeriesEngagement{Views: 500000}))
	require.Equal(t, 0.0, TrendingScore(model.SeriesEngagement{}))
}

func TestApplyInteraction(t *testing.T) {
	a := model.Affinity{"drama": 10}

	out, err := ApplyInteraction(a, "Drama", model.ActionComplete, 2)
	require.NoError(t, err)
	require.Equal(t, 20.0, out["drama"])

	_, err = ApplyInteraction(a, "drama", model.Action("skip"), 1)
	require.ErrorIs(t, err, ErrInvalidInteraction)

	out, err = ApplyInteraction(a, "drama", model.ActionLike, -4)
	require.NoError(t, err)
	require.Equal(t, 10.0, out["drama"])
}

func TestApplyInteractionKeepsBudget(t *testing.T) {
	a := model.Affinity{}
	genres := []string{"drama", "romance", "acao", "comedia", "terror"}
	for i := 0; i < 200; i++ {
		var err error
		a, err = ApplyInteraction(a, genres[i%len(genres)], model.ActionComplete, 1)
		require.NoError(t, err)
		require.LessOrEqual(t, a.Total(), model.AffinityBudget+1e-9)
		for _, w := range a {
			require.LessOrEqual(t, w, model.MaxGenreAffinity)
		}
	}
}
