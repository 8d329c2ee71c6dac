// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordRateLimited(scope string)
	RecordCleanupDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
// session.Recorder、profile.Recorderも満たす。
type Collector struct {
	transitions    *prometheus.CounterVec
	authEvents     *prometheus.CounterVec
	profileCache   *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	rateLimited    *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salonlink_session_transitions_total",
			Help: "認証状態の遷移回数（遷移先ステータス別）",
		}, []string{"status"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salonlink_auth_events_total",
			Help: "認証イベントの処理結果別の件数",
		}, []string{"event", "outcome"}),
		profileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salonlink_profile_cache_total",
			Help: "プロフィールキャッシュの結果別の件数（hit/fetch/shared/stale/error）",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salonlink_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "salonlink_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "salonlink_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"scope"}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salonlink_cleanup_deleted_total",
			Help: "クリーンアップで削除された孤立スタイリストプロフィール数",
		}),
	}

	reg.MustRegister(
		c.transitions,
		c.authEvents,
		c.profileCache,
		c.httpStatus,
		c.requestLatency,
		c.rateLimited,
		c.cleanupDeleted,
	)

	return c
}

// RecordTransition は認証状態の遷移を記録する。
func (c *Collector) RecordTransition(status string) {
	c.transitions.WithLabelValues(status).Inc()
}

// RecordAuthEvent は認証イベントの処理結果を記録する。
func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordProfileCache はプロフィールキャッシュの結果を記録する。
func (c *Collector) RecordProfileCache(result string) {
	c.profileCache.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// RecordCleanupDeleted はクリーンアップの削除件数を加算する。
func (c *Collector) RecordCleanupDeleted(count int64) {
	c.cleanupDeleted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
