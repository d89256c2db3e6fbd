// Package metrics provides Prometheus metrics for the Merton quoter
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config 指标命名空间
type Config struct {
	Namespace string `yaml:"namespace" default:"mm"`
	Subsystem string `yaml:"subsystem" default:"merton"`
	Addr      string `yaml:"addr" default:":9100"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Namespace: "mm", Subsystem: "merton", Addr: ":9100"}
}

// Collector 校准/报价/监控指标，使用独立 registry
type Collector struct {
	registry *prometheus.Registry

	// 行情
	ticksAccepted prometheus.Counter
	ticksRejected prometheus.Counter
	midPrice      prometheus.Gauge
	samples       prometheus.Gauge

	// 校准
	fitAttempts prometheus.Counter
	fitAccepted prometheus.Counter
	fitDuration prometheus.Histogram
	params      *prometheus.GaugeVec

	// 定价与监控
	fairValue         prometheus.Gauge
	referenceGapBps   prometheus.Gauge
	referenceFailures prometheus.Counter
	quotesPublished   prometheus.Counter

	// 资金费率
	fundingRefreshes prometheus.Counter
	fundingErrors    prometheus.Counter
	fundingAnnual    prometheus.Gauge
}

// New 创建新的Collector实例
func New(cfg Config) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}

	return &Collector{
		registry:      reg,
		ticksAccepted: counter("ticks_accepted_total", "接入的有效 tick 数"),
		ticksRejected: counter("ticks_rejected_total", "被拒绝的 tick 数（非正价格/时间回退）"),
		midPrice:      gauge("mid_price", "当前中间价"),
		samples:       gauge("window_samples", "收益率窗口样本数"),
		fitAttempts:   counter("fit_attempts_total", "校准尝试次数"),
		fitAccepted:   counter("fit_accepted_total", "安装新参数次数"),
		fitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fit_duration_seconds",
			Help:      "单次坐标搜索耗时（秒）",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		params: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "param",
			Help:      "当前 Merton 参数",
		}, []string{"name"}),
		fairValue:         gauge("fair_value", "快速定价公允价"),
		referenceGapBps:   gauge("reference_gap_bps", "参考定价与快速定价偏差（bps）"),
		referenceFailures: counter("reference_failures_total", "参考定价失败次数"),
		quotesPublished:   counter("quotes_published_total", "发布的报价数"),
		fundingRefreshes:  counter("funding_refreshes_total", "资金费率刷新成功次数"),
		fundingErrors:     counter("funding_errors_total", "资金费率刷新失败次数"),
		fundingAnnual:     gauge("funding_annual", "年化资金费率"),
	}
}

func (c *Collector) RecordTick(accepted bool, mid float64) {
	if !accepted {
		c.ticksRejected.Inc()
		return
	}
	c.ticksAccepted.Inc()
	c.midPrice.Set(mid)
}

func (c *Collector) SetSamples(n int) {
	c.samples.Set(float64(n))
}

// RecordFit 记录一次校准尝试；accepted 时同步参数 gauge
func (c *Collector) RecordFit(accepted bool, d time.Duration, sigma, lambda, muJ, deltaJ float64) {
	c.fitAttempts.Inc()
	c.fitDuration.Observe(d.Seconds())
	if accepted {
		c.fitAccepted.Inc()
	}
	c.SetParams(sigma, lambda, muJ, deltaJ)
}

func (c *Collector) SetParams(sigma, lambda, muJ, deltaJ float64) {
	c.params.WithLabelValues("sigma").Set(sigma)
	c.params.WithLabelValues("lambda").Set(lambda)
	c.params.WithLabelValues("mu_j").Set(muJ)
	c.params.WithLabelValues("delta_j").Set(deltaJ)
}

func (c *Collector) RecordQuote(fairValue float64) {
	c.fairValue.Set(fairValue)
	c.quotesPublished.Inc()
}

func (c *Collector) RecordReference(gapBps float64, err error) {
	if err != nil {
		c.referenceFailures.Inc()
		return
	}
	c.referenceGapBps.Set(gapBps)
}

func (c *Collector) RecordFunding(annual float64, err error) {
	if err != nil {
		c.fundingErrors.Inc()
		return
	}
	c.fundingRefreshes.Inc()
	c.fundingAnnual.Set(annual)
}

// Handler 返回HTTP handler用于暴露指标
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Server /metrics HTTP 服务
type Server struct {
	srv *http.Server
	err atomic.Pointer[error]
}

// NewServer 在 addr 上暴露 collector
func NewServer(addr string, c *Collector) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

// Start 后台监听，ctx 取消时关闭
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", s.srv.Addr, err)
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.err.Store(&err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()
	return nil
}

// Stop 优雅关闭
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) Name() string { return "metrics_server" }

// Health 服务异常退出时返回错误
func (s *Server) Health() error {
	if p := s.err.Load(); p != nil {
		return *p
	}
	return nil
}
