// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordPublishSuccess()
	RecordPublishFailure(reason string)
	RecordPublishRetry()
	RecordPublishLatency(duration time.Duration)
	SetDuePosts(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	publishSuccess prometheus.Counter
	publishFail    *prometheus.CounterVec
	publishRetry   prometheus.Counter
	publishLatency prometheus.Histogram
	duePosts       prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		publishSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contenthub_publish_success_total",
			Help: "投稿公開成功の合計数",
		}),
		publishFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contenthub_publish_fail_total",
			Help: "投稿公開失敗の合計数（失敗理由別）",
		}, []string{"reason"}),
		publishRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contenthub_publish_retry_total",
			Help: "投稿公開リトライの合計数",
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contenthub_publish_latency_seconds",
			Help:    "投稿公開APIコールのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		duePosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contenthub_due_posts",
			Help: "直近の公開サイクルで期限到来していたpending投稿数",
		}),
	}

	reg.MustRegister(
		c.publishSuccess,
		c.publishFail,
		c.publishRetry,
		c.publishLatency,
		c.duePosts,
	)

	return c
}

// RecordPublishSuccess は公開成功を記録する。
func (c *Collector) RecordPublishSuccess() {
	c.publishSuccess.Inc()
}

// RecordPublishFailure は公開失敗を理由付きで記録する。
// reasonは "retryable", "permanent", "credential" のいずれか。
func (c *Collector) RecordPublishFailure(reason string) {
	c.publishFail.WithLabelValues(reason).Inc()
}

// RecordPublishRetry は再試行のスケジュールを記録する。
func (c *Collector) RecordPublishRetry() {
	c.publishRetry.Inc()
}

// RecordPublishLatency は公開APIコールのレイテンシを記録する。
func (c *Collector) RecordPublishLatency(duration time.Duration) {
	c.publishLatency.Observe(duration.Seconds())
}

// SetDuePosts は期限到来していたpending投稿数を記録する。
func (c *Collector) SetDuePosts(count int) {
	c.duePosts.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
