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
// リアルタイム配信層およびハンドラー層から利用する。
type MetricsCollector interface {
	RecordWSConnect()
	RecordWSDisconnect()
	RecordMessageSent()
	RecordSendFailure(reason string)
	RecordBroadcastDeliveries(count int)
	RecordPersistLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	wsConnections  prometheus.Gauge
	messagesSent   prometheus.Counter
	sendFailures   *prometheus.CounterVec
	broadcastCount prometheus.Counter
	persistLatency prometheus.Histogram
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kaiwa_ws_connections",
			Help: "現在アクティブなWebSocket接続数",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaiwa_messages_sent_total",
			Help: "永続化に成功したメッセージの合計数",
		}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaiwa_message_send_failures_total",
			Help: "メッセージ送信失敗の理由別合計数",
		}, []string{"reason"}),
		broadcastCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaiwa_broadcast_deliveries_total",
			Help: "ルームへ配信されたイベントの合計数",
		}),
		persistLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kaiwa_message_persist_seconds",
			Help:    "メッセージ永続化のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaiwa_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.wsConnections,
		c.messagesSent,
		c.sendFailures,
		c.broadcastCount,
		c.persistLatency,
		c.httpStatus,
	)

	return c
}

// RecordWSConnect はWebSocket接続の確立を記録する。
func (c *Collector) RecordWSConnect() {
	c.wsConnections.Inc()
}

// RecordWSDisconnect はWebSocket接続の切断を記録する。
func (c *Collector) RecordWSDisconnect() {
	c.wsConnections.Dec()
}

// RecordMessageSent はメッセージの永続化成功を記録する。
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// RecordSendFailure はメッセージ送信失敗を理由付きで記録する。
func (c *Collector) RecordSendFailure(reason string) {
	c.sendFailures.WithLabelValues(reason).Inc()
}

// RecordBroadcastDeliveries は配信したイベント数を記録する。
func (c *Collector) RecordBroadcastDeliveries(count int) {
	c.broadcastCount.Add(float64(count))
}

// RecordPersistLatency はメッセージ永続化のレイテンシを記録する。
func (c *Collector) RecordPersistLatency(duration time.Duration) {
	c.persistLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
