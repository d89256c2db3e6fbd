package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"merton-mm-go/internal/container"
)

// 行情 → 在线校准 → Merton 公允价报价，输出到日志或 Kafka。不下单。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	healthEvery := flag.Duration("healthEvery", 30*time.Second, "健康检查间隔")
	flag.Parse()

	c, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}
	lg := c.Logger()
	cfg := c.Config()
	lg.Info("runner started", zap.String("symbol", cfg.Symbol), zap.String("config", *cfgPath))

	// 非 systemd 环境下 SdNotify 返回 (false, nil)
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn("sd_notify ready failed", zap.Error(err))
	}

	// systemd watchdog 启用时按一半周期喂狗，不健康时不喂
	interval := *healthEvery
	watchdog, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		lg.Warn("sd watchdog check failed", zap.Error(err))
	}
	if watchdog > 0 && watchdog/2 < interval {
		interval = watchdog / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-quit:
			lg.Info("signal received", zap.String("signal", sig.String()))
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
			cancel()
			if err := c.Stop(); err != nil {
				os.Exit(1)
			}
			return
		case <-ticker.C:
			if err := c.HealthCheck(); err != nil {
				lg.Warn("health check failed", zap.Error(err))
				continue
			}
			if watchdog > 0 {
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
			p := c.Calibrator().Params()
			lg.Info("heartbeat",
				zap.Uint64("quotes", c.Quoter().QuoteCount()),
				zap.Int("samples", c.Calibrator().SampleCount()),
				zap.Stringer("params", p),
				zap.Duration("staleness", c.MarketData().Staleness(cfg.Symbol)),
			)
		}
	}
}
