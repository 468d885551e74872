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
// ハンドラー、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthAction(action, outcome string)
	RecordProfileOperation(op, outcome string)
	RecordSessionResolution(result string)
	RecordGuardDecision(route string, allowed bool)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordCleanupDeleted(kind string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authActions        *prometheus.CounterVec
	profileOperations  *prometheus.CounterVec
	sessionResolutions *prometheus.CounterVec
	guardDecisions     *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	cleanupDeleted     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_auth_actions_total",
			Help: "認証アクション（signin, signup, signout, recover等）の結果別件数",
		}, []string{"action", "outcome"}),
		profileOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_profile_operations_total",
			Help: "プロフィール読み書きの結果別件数",
		}, []string{"op", "outcome"}),
		sessionResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_session_resolutions_total",
			Help: "リクエストごとのセッション解決結果",
		}, []string{"result"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_guard_decisions_total",
			Help: "ルートガードの判定結果",
		}, []string{"route", "decision"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "profilegate_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profilegate_cleanup_deleted_total",
			Help: "クリーンアップで削除した行数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.authActions,
		c.profileOperations,
		c.sessionResolutions,
		c.guardDecisions,
		c.httpStatus,
		c.requestLatency,
		c.cleanupDeleted,
	)

	return c
}

// RecordAuthAction は認証アクションの結果を記録する。
func (c *Collector) RecordAuthAction(action, outcome string) {
	c.authActions.WithLabelValues(action, outcome).Inc()
}

// RecordProfileOperation はプロフィール操作の結果を記録する。
func (c *Collector) RecordProfileOperation(op, outcome string) {
	c.profileOperations.WithLabelValues(op, outcome).Inc()
}

// RecordSessionResolution はセッション解決の結果を記録する。
func (c *Collector) RecordSessionResolution(result string) {
	c.sessionResolutions.WithLabelValues(result).Inc()
}

// RecordGuardDecision はルートガードの判定を記録する。
func (c *Collector) RecordGuardDecision(route string, allowed bool) {
	decision := "redirect"
	if allowed {
		decision = "allow"
	}
	c.guardDecisions.WithLabelValues(route, decision).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordCleanupDeleted はクリーンアップで削除した行数を記録する。
func (c *Collector) RecordCleanupDeleted(kind string, count int64) {
	c.cleanupDeleted.WithLabelValues(kind).Add(float64(count))
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
