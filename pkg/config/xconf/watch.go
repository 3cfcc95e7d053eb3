package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// ReloadFunc 在配置文件变更并重载后调用，err 为重载或监视错误。
type ReloadFunc func(cfg Config, err error)

// WatchOption 监视配置选项。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce 设置防抖时间，时间窗口内的多次变更只触发一次重载。
// 默认 100ms，非正数被忽略。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watch 监视配置文件，变更时调用 Reload 并通知 onReload。
// 阻塞直到 ctx 结束，返回 nil；初始化失败时立即返回错误。
//
// 监视的是文件所在目录，编辑器"写临时文件再 rename"的保存方式也能被捕获。
// onReload 在 Watch 所在 goroutine 上同步调用。
func Watch(ctx context.Context, cfg Config, onReload ReloadFunc, opts ...WatchOption) (err error) {
	kc, ok := cfg.(*koanfConfig)
	if !ok {
		return ErrUnsupportedConfig
	}
	if kc.isBytes {
		return ErrReloadBytes
	}
	o := watchOptions{debounce: defaultDebounce}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xconf: create watcher: %w", err)
	}
	defer func() { err = errors.Join(err, fw.Close()) }()

	dir := filepath.Dir(kc.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("xconf: watch directory %s: %w", dir, err)
	}

	filename := filepath.Base(kc.path)
	timer := time.NewTimer(o.debounce)
	timer.Stop()
	defer timer.Stop()

	notify := func(err error) {
		if onReload != nil {
			onReload(kc, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != filename {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(o.debounce)
		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			notify(fmt.Errorf("xconf: watch error: %w", werr))
		case <-timer.C:
			notify(kc.Reload())
		}
	}
}
