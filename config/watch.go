package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"merton-mm-go/infrastructure/logger"
)

// Watcher 监听配置文件变化，重新加载并通过回调下发新配置。
// 只有报价参数会被调用方实际应用；校准器配置构造后不可变。
type Watcher struct {
	path     string
	cooldown time.Duration
	log      *logger.Logger
	onUpdate func(AppConfig)

	watcher    *fsnotify.Watcher
	mu         sync.Mutex
	lastReload time.Time
	pending    *time.Timer // 冷却期内的变更推迟到冷却结束再加载
	stopped    bool
	stopChan   chan struct{}
	doneChan   chan struct{}
	stopOnce   sync.Once
}

// NewWatcher 创建热更新器
func NewWatcher(path string, cooldown time.Duration, log *logger.Logger, onUpdate func(AppConfig)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Watcher{
		path:     path,
		cooldown: cooldown,
		log:      log,
		onUpdate: onUpdate,
		watcher:  fw,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

func (w *Watcher) Name() string { return "config_watcher" }

// Start 监听文件所在目录（编辑器常以 rename 方式保存）
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}
	go w.watch(ctx)
	return nil
}

// Stop 停止热更新
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.mu.Lock()
	w.stopped = true
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()
	select {
	case <-w.doneChan:
	case <-time.After(time.Second):
		// watch goroutine 可能从未启动
	}
	return w.watcher.Close()
}

func (w *Watcher) Health() error { return nil }

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneChan)
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.LogError(err, map[string]interface{}{"component": "config_watcher"})
		}
	}
}

// reload 冷却期内的变更推迟到冷却结束时重新读取文件，保证最后一次保存的内容生效；
// 加载失败保留旧配置
func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if !w.lastReload.IsZero() {
		if wait := w.cooldown - time.Since(w.lastReload); wait > 0 {
			if w.pending == nil {
				w.pending = time.AfterFunc(wait, w.reloadPending)
			}
			return
		}
	}
	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.log.LogError(err, map[string]interface{}{"component": "config_watcher", "path": w.path})
		return
	}
	w.lastReload = time.Now()
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}

func (w *Watcher) reloadPending() {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()
	w.reload()
}
