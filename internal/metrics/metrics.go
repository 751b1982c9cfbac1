// Package metrics Prometheus 指标定义，由 /metrics 暴露
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 生成流连接
	StreamConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_connections_active",
			Help: "Generation streams currently registered",
		},
	)

	StreamConnectionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_connections_closed_total",
			Help: "Generation streams removed from the registry, by outcome",
		},
		[]string{"outcome"}, // "finished", "stopped", "swept", "failed"
	)

	// 推荐流
	FeedBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_build_duration_seconds",
			Help:    "Time spent building a feed or carousel response",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"feed"},
	)

	PreferenceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_preference_updates_total",
			Help: "Genre affinity updates, by interaction",
		},
		[]string{"action"},
	)

	// 热度
	TrendingRecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trending_recompute_total",
			Help: "Trending score batch recomputes, by result",
		},
		[]string{"result"},
	)

	TrendingRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trending_recompute_duration_seconds",
			Help:    "Duration of a full trending score recompute",
			Buckets: prometheus.DefBuckets,
		},
	)

	// 上游 AI 服务
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_provider_requests_total",
			Help: "Requests sent to the generation provider",
		},
		[]string{"provider", "mode", "result"},
	)

	ProviderCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ai_provider_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// 生成额度
	CreditCharges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_credit_charges_total",
			Help: "Credit charges before a generation, by owner kind and result",
		},
		[]string{"owner_kind", "result"}, // "charged", "insufficient", "refunded"
	)

	// 评论
	CommentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comments_created_total",
			Help: "Comments and replies posted",
		},
	)

	// 搜索
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Search queries, by cache result",
		},
		[]string{"cache"}, // "hit", "stale", "miss"
	)

	// HTTP 请求
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)
