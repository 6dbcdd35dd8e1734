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
	RecordPublishSuccess(platform string)
	RecordPublishFailure(platform string, reason string)
	RecordPublishLatency(duration time.Duration)
	RecordPostsQueued(count int)
	RecordPostsRequeued(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	publishSuccess *prometheus.CounterVec
	publishFail    *prometheus.CounterVec
	publishLatency prometheus.Histogram
	postsQueued    prometheus.Counter
	postsRequeued  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		publishSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosspost_publish_success_total",
			Help: "投稿公開成功の合計数",
		}, []string{"platform"}),
		publishFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosspost_publish_fail_total",
			Help: "投稿公開失敗の合計数",
		}, []string{"platform", "reason"}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crosspost_publish_latency_seconds",
			Help:    "投稿公開のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		postsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crosspost_posts_queued_total",
			Help: "キューに投入された投稿の合計数",
		}),
		postsRequeued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crosspost_posts_requeued_total",
			Help: "スタック状態から再キューされた投稿の合計数",
		}),
	}

	reg.MustRegister(
		c.publishSuccess,
		c.publishFail,
		c.publishLatency,
		c.postsQueued,
		c.postsRequeued,
	)

	return c
}

// RecordPublishSuccess は公開成功を記録する。
func (c *Collector) RecordPublishSuccess(platform string) {
	c.publishSuccess.WithLabelValues(platform).Inc()
}

// RecordPublishFailure は公開失敗を記録する。
func (c *Collector) RecordPublishFailure(platform string, reason string) {
	c.publishFail.WithLabelValues(platform, reason).Inc()
}

// RecordPublishLatency は公開処理のレイテンシを記録する。
func (c *Collector) RecordPublishLatency(duration time.Duration) {
	c.publishLatency.Observe(duration.Seconds())
}

// RecordPostsQueued はキューに投入された投稿数を記録する。
func (c *Collector) RecordPostsQueued(count int) {
	c.postsQueued.Add(float64(count))
}

// RecordPostsRequeued は再キューされた投稿数を記録する。
func (c *Collector) RecordPostsRequeued(count int) {
	c.postsRequeued.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
