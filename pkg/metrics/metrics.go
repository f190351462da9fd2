package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SyncAttempts 按 sync_type 统计的同步尝试次数
	SyncAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treasure", Name: "sync_attempts_total", Help: "Score sync attempts",
	}, []string{"sync_type"})

	// SyncOutcomes 按终态统计的同步结果
	SyncOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treasure", Name: "sync_outcomes_total", Help: "Score sync terminal outcomes",
	}, []string{"status"})

	// SyncDuration 同步事务耗时
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "treasure", Name: "sync_duration_seconds", Help: "Score sync transaction latency",
		Buckets: prometheus.DefBuckets,
	})

	// RetrySweeps 重试扫描次数
	RetrySweeps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "treasure", Name: "retry_sweeps_total", Help: "Retry sweep runs",
	})

	// RealtimeConnections 当前实时连接数
	RealtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "treasure", Name: "realtime_connections", Help: "Active realtime connections",
	})

	// RealtimeEvents 按事件类型统计的推送次数
	RealtimeEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "treasure", Name: "realtime_events_total", Help: "Published realtime events",
	}, []string{"event"})

	// RealtimeRejections 订阅被拒次数
	RealtimeRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "treasure", Name: "realtime_subscribe_rejections_total", Help: "Rejected subscription requests",
	})
)

func init() {
	prometheus.MustRegister(
		SyncAttempts, SyncOutcomes, SyncDuration, RetrySweeps,
		RealtimeConnections, RealtimeEvents, RealtimeRejections,
	)
}

// Handler 返回 /metrics 的 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// ObserveSync 记录一次同步事务耗时
func ObserveSync(d time.Duration) { SyncDuration.Observe(d.Seconds()) }
