package container

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"merton-mm-go/config"
	"merton-mm-go/gateway"
	"merton-mm-go/infrastructure/alert"
	"merton-mm-go/infrastructure/logger"
	"merton-mm-go/market"
	"merton-mm-go/merton"
	"merton-mm-go/metrics"
	"merton-mm-go/sink"
	"merton-mm-go/strategy"
)

// tickBuffer 行情发布器到报价协程的缓冲，满了丢最新 tick
const tickBuffer = 1024

// closableSink 可关闭的报价出口
type closableSink interface {
	strategy.Sink
	Close() error
}

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg        config.AppConfig
	configPath string

	// 基础设施
	logger  *logger.Logger
	metrics *metrics.Collector
	alerts  *alert.Manager

	// 核心服务
	calibrator *merton.Calibrator
	funding    *strategy.FundingCache
	quoter     *strategy.MertonQuoter
	marketData *market.Service
	sink       closableSink

	// 外部连接
	restClient *gateway.BitmexRESTClient
	feed       *gateway.BitmexQuoteFeed

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 加载配置（含环境变量覆盖）并创建Container
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewFromConfig(cfg, configPath), nil
}

// NewFromConfig 使用已加载的配置；configPath 为空时不监听热更新
func NewFromConfig(cfg config.AppConfig, configPath string) *Container {
	return &Container{
		cfg:        cfg,
		configPath: configPath,
		lifecycle:  NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}
	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}
	if err := c.buildGateway(); err != nil {
		return fmt.Errorf("build gateway failed: %w", err)
	}
	if err := c.registerLifecycleComponents(); err != nil {
		return fmt.Errorf("register components failed: %w", err)
	}
	c.logger.Info("container built", zap.String("symbol", c.cfg.Symbol), zap.Strings("components", c.lifecycle.Names()))
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}
	c.logger = c.logger.WithFields(map[string]interface{}{"env": c.cfg.Env})

	c.metrics = metrics.New(c.cfg.Metrics)
	c.alerts = alert.NewManager([]alert.Channel{alert.NewLogChannel("log", c.logger)}, time.Minute)

	switch c.cfg.Sink.Type {
	case "kafka":
		ks, err := sink.NewKafkaSink(sink.KafkaConfig{
			Brokers:      c.cfg.Sink.Brokers,
			QuoteTopic:   c.cfg.Sink.QuoteTopic,
			MonitorTopic: c.cfg.Sink.MonitorTopic,
		}, c.logger)
		if err != nil {
			return fmt.Errorf("create kafka sink failed: %w", err)
		}
		c.sink = ks
	default:
		c.sink = sink.NewLogSink(c.logger)
	}
	return nil
}

func (c *Container) buildCoreServices() error {
	var err error
	c.calibrator, err = merton.NewCalibrator(c.cfg.Seed, c.cfg.CalibratorConfig())
	if err != nil {
		return fmt.Errorf("create calibrator failed: %w", err)
	}

	c.funding = &strategy.FundingCache{}
	c.quoter, err = strategy.NewMertonQuoter(c.cfg.Symbol, c.calibrator, c.cfg.Quote, strategy.QuoterDeps{
		Funding: c.funding,
		Sink:    c.sink,
		Alerts:  c.alerts,
		Metrics: c.metrics,
		Log:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("create quoter failed: %w", err)
	}

	c.marketData = market.NewService(market.NewPublisher())
	return nil
}

func (c *Container) buildGateway() error {
	f := c.cfg.Funding
	c.restClient = gateway.NewBitmexRESTClient(f.BaseURL, f.RequestsPerSecond, time.Duration(f.TimeoutSeconds)*time.Second)

	fc := c.cfg.Feed
	c.feed = gateway.NewBitmexQuoteFeed(fc.URL, c.cfg.Symbol, c.marketData.OnTick, c.logger)
	c.feed.ReconnectMin = time.Duration(fc.ReconnectMinMs) * time.Millisecond
	c.feed.ReconnectMax = time.Duration(fc.ReconnectMaxMs) * time.Millisecond
	c.feed.ReadTimeout = time.Duration(fc.ReadTimeoutSecs) * time.Second
	return nil
}

// registerLifecycleComponents 启动顺序：出口 → 指标 → 资金费率 → 报价协程 → 行情 → 配置监听
func (c *Container) registerLifecycleComponents() error {
	c.lifecycle.Register(&sinkComponent{sink: c.sink})
	c.lifecycle.Register(metrics.NewServer(c.cfg.Metrics.Addr, c.metrics))

	interval := time.Duration(c.cfg.Funding.RefreshSeconds) * time.Second
	c.lifecycle.Register(strategy.NewFundingPoller(c.restClient, c.cfg.Symbol, interval, c.funding, c.logger, c.metrics))

	ticks := c.marketData.Publisher().Subscribe(tickBuffer)
	c.lifecycle.Register(newTickPipeline(ticks, c.quoter, c.logger))
	c.lifecycle.Register(c.feed)

	if c.cfg.Reload.Enabled && c.configPath != "" {
		cooldown := time.Duration(c.cfg.Reload.CooldownMs) * time.Millisecond
		w, err := config.NewWatcher(c.configPath, cooldown, c.logger, c.applyReload)
		if err != nil {
			return err
		}
		c.lifecycle.Register(w)
	}
	return nil
}

// applyReload 只有报价参数支持热更新，校准器配置需要重启
func (c *Container) applyReload(next config.AppConfig) {
	if err := c.quoter.UpdateConfig(next.Quote); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "reload_quote_config"})
		return
	}
	if next.CalibratorConfig() != c.cfg.CalibratorConfig() || next.Symbol != c.cfg.Symbol {
		c.logger.Warn("calibrator/symbol changes require restart", zap.String("symbol", next.Symbol))
	}
	c.logger.Info("quote config reloaded",
		zap.Float64("horizon_hours", next.Quote.HorizonHours),
		zap.Float64("min_half_spread_bps", next.Quote.MinHalfSpreadBps),
		zap.Float64("tick_size", next.Quote.TickSize),
	)
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	c.marketData.Publisher().Close()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	p := c.calibrator.Params()
	c.logger.Info("container stopped",
		zap.Uint64("quotes", c.quoter.QuoteCount()),
		zap.Stringer("params", p),
	)
	_ = c.logger.Close()
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

func (c *Container) Config() config.AppConfig { return c.cfg }

func (c *Container) Calibrator() *merton.Calibrator { return c.calibrator }

func (c *Container) Quoter() *strategy.MertonQuoter { return c.quoter }

func (c *Container) MarketData() *market.Service { return c.marketData }

func (c *Container) Metrics() *metrics.Collector { return c.metrics }

func (c *Container) Funding() *strategy.FundingCache { return c.funding }

func (c *Container) Logger() *logger.Logger { return c.logger }

// Components 注册的组件名，按启动顺序
func (c *Container) Components() []string { return c.lifecycle.Names() }

// sinkComponent 在所有生产者停止后关闭出口（最先注册，最后停止）
type sinkComponent struct {
	sink closableSink
}

func (s *sinkComponent) Name() string { return "quote_sink" }
func (s *sinkComponent) Start(ctx context.Context) error { return nil }
func (s *sinkComponent) Stop() error { return s.sink.Close() }
func (s *sinkComponent) Health() error { return nil }
