package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xtrap/pkg/config/xconf"
	"github.com/omeyang/xtrap/pkg/lifecycle/xrun"
	"github.com/omeyang/xtrap/pkg/observability/xlog"
	"github.com/omeyang/xtrap/pkg/observability/xmetrics"
	"github.com/omeyang/xtrap/pkg/sync/xsignal"
	"github.com/omeyang/xtrap/pkg/sync/xtrap"
)

// errStillBlocked 表示重试次数用尽后仍有 trigger 阻止武装。
var errStillBlocked = errors.New("trap still blocked")

func createWatchCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "监视文件，写入后报告就绪并重新武装；文件删除后重新创建会继续监视",
		ArgsUsage: "<path...>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "otel",
				Usage: "通过全局 OpenTelemetry provider 记录 trap 操作",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return newUsageError("watch requires at least one path")
			}
			cfg, app, logger, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			var observer xmetrics.Observer
			if cmd.Bool("otel") {
				if observer, err = xmetrics.NewOTelObserver(); err != nil {
					return err
				}
			}
			w := &watchSession{
				out:      stdout,
				app:      app,
				logger:   logger,
				observer: observer,
				runOpts:  []xrun.Option{xrun.WithLogger(logger), xrun.WithName("xtrapctl")},
			}
			if cmd.IsSet("config") {
				w.config = cfg
			}
			err = w.run(ctx, cmd.Args().Slice())
			if errors.Is(err, xrun.ErrSignal) {
				return nil
			}
			return err
		},
	}
}

// watchTarget 是一个被监视的文件及其 hub handle。
type watchTarget struct {
	path   string
	handle xtrap.Handle
}

// watchSession 把文件写入事件映射为 hub 信号，由 trap 报告就绪文件。
//
// 每个文件对应一个 handle 和一个 trigger。写入置位 Readable，删除或
// 重命名关闭 handle；trap 触发后输出就绪文件、清除 Readable，再带重试地
// 重新武装。路径上重新出现文件（编辑器先改名再写回、日志轮转）时，
// 换上新 handle 和新 context 的 trigger，旧 context 迟到的事件被忽略。
type watchSession struct {
	out      io.Writer
	app      appConfig
	logger   xlog.LoggerWithLevel
	observer xmetrics.Observer
	config   xconf.Config
	runOpts  []xrun.Option

	hub   *xsignal.Hub
	trap  *xtrap.Trap
	queue *eventQueue

	mu      sync.Mutex // 保护 targets[i].handle，watchFiles 与 consume 共享
	targets []watchTarget
	byPath  map[string]int

	// 以下只由 consume 访问（register 在服务启动前完成）。
	byContext   map[uint64]int
	lastContext uint64
	recreated   chan int
}

func (w *watchSession) run(ctx context.Context, paths []string) (err error) {
	w.hub, err = xsignal.New(
		xsignal.WithWorkers(w.app.Hub.Workers),
		xsignal.WithQueueSize(w.app.Hub.QueueSize),
		xsignal.WithLogger(w.logger),
	)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, w.hub.Close()) }()

	w.queue = newEventQueue()
	w.trap, err = xtrap.New(w.hub, w.queue.push,
		xtrap.WithName(w.app.Trap.Name),
		xtrap.WithMaxBlockers(w.app.Trap.MaxBlockers),
		xtrap.WithLogger(w.logger),
		xtrap.WithObserver(w.observer),
	)
	if err != nil {
		return err
	}
	defer func() { _ = w.trap.Close() }()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { err = errors.Join(err, fw.Close()) }()

	if err := w.register(fw, paths); err != nil {
		return err
	}

	services := []func(context.Context) error{
		func(ctx context.Context) error { return w.watchFiles(ctx, fw) },
		w.consume,
	}
	if w.config != nil {
		services = append(services, func(ctx context.Context) error {
			return xconf.Watch(ctx, w.config, w.onConfigReload)
		})
	}
	if d := w.app.Watch.ReportInterval; d > 0 {
		services = append(services, xrun.Ticker(d, false, w.report))
	}
	return xrun.RunWithOptions(ctx, w.runOpts, services...)
}

// register 为每个文件创建 handle、注册 trigger，并监视其所在目录。
func (w *watchSession) register(fw *fsnotify.Watcher, paths []string) error {
	w.byPath = make(map[string]int, len(paths))
	w.byContext = make(map[uint64]int, len(paths))
	w.recreated = make(chan int, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return newUsageError("invalid path %q: %v", p, err)
		}
		if _, dup := w.byPath[abs]; dup {
			return newUsageError("duplicate path %q", p)
		}
		h, err := w.hub.Create(0)
		if err != nil {
			return err
		}
		idx := len(w.targets)
		if err := w.addTrigger(h, idx); err != nil {
			return err
		}
		w.targets = append(w.targets, watchTarget{path: abs, handle: h})
		w.byPath[abs] = idx

		dir := filepath.Dir(abs)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = struct{}{}
	}
	return nil
}

// watchFiles 把 fsnotify 事件翻译为 hub 信号变化。
func (w *watchSession) watchFiles(ctx context.Context, fw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			idx, found := w.byPath[filepath.Clean(ev.Name)]
			if !found {
				continue
			}
			target := w.target(idx)
			switch {
			case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
				err := w.hub.Raise(target.handle, xsignal.Readable)
				switch {
				case err == nil:
				case errors.Is(err, xsignal.ErrHandleClosed):
					if !ev.Has(fsnotify.Create) {
						continue
					}
					select {
					case w.recreated <- idx:
					case <-ctx.Done():
						return ctx.Err()
					}
				default:
					w.logger.Warn(ctx, "raise failed", xlog.Path(target.path), xlog.Err(err))
				}
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				err := w.hub.CloseHandle(target.handle)
				if err != nil && !errors.Is(err, xsignal.ErrHandleClosed) {
					w.logger.Warn(ctx, "close handle failed", xlog.Path(target.path), xlog.Err(err))
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "file watcher error", xlog.Err(err))
		}
	}
}

// consume 处理 trap 事件并在每批事件后重新武装。
// 重试用尽仍被阻塞时，等待一个重试间隔后再次尝试。
func (w *watchSession) consume(ctx context.Context) error {
	var retryC <-chan time.Time
	rearm := func() error {
		retryC = nil
		err := w.rearm(ctx)
		switch {
		case errors.Is(err, errStillBlocked):
			w.logger.Warn(ctx, "trap still blocked, retrying later")
			retryC = time.After(max(w.app.Arm.Delay, time.Millisecond))
			return nil
		case errors.Is(err, xtrap.ErrClosed):
			return nil
		}
		return err
	}

	reported := false
	noteEmpty := func() bool {
		if w.trap.Len() != 0 {
			return false
		}
		if !reported {
			reported = true
			fmt.Fprintln(w.out, "no files left")
		}
		return true
	}

	if err := rearm(); err != nil {
		return err
	}
	noteEmpty()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retryC:
		case <-w.queue.ready:
			for _, ev := range w.queue.take() {
				w.handle(ctx, ev)
			}
		case idx := <-w.recreated:
			if w.replace(ctx, idx) {
				reported = false
			}
		}
		if noteEmpty() {
			continue
		}
		if err := rearm(); err != nil {
			return err
		}
		noteEmpty()
	}
}

// rearm 尝试武装 trap；遇到 blocker 时先处理它们再重试。
func (w *watchSession) rearm(ctx context.Context) error {
	return retry.New(
		retry.Attempts(w.app.Arm.Attempts),
		retry.Delay(w.app.Arm.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errStillBlocked) }),
		retry.OnRetry(func(attempt uint, err error) {
			w.logger.Debug(ctx, "re-arm retry", xlog.Count(int64(attempt)), xlog.Err(err))
		}),
	).Do(func() error {
		blockers, err := w.trap.Arm()
		if err != nil {
			return err
		}
		if len(blockers) == 0 {
			return nil
		}
		for _, b := range blockers {
			w.ready(ctx, b.Context, b.Status)
		}
		return errStillBlocked
	})
}

func (w *watchSession) handle(ctx context.Context, ev xtrap.Event) {
	switch ev.Kind {
	case xtrap.EventFired:
		w.ready(ctx, ev.Context, ev.Status)
	case xtrap.EventRemoved:
		w.logger.Debug(ctx, "trigger removed", xlog.Context(ev.Context))
	}
}

// ready 报告一个就绪文件并消费它的信号。
// handle 已关闭时移除 trigger，直到路径上重新出现文件前不再报告它。
// 已被替换的 context 的事件直接忽略。
func (w *watchSession) ready(ctx context.Context, triggerContext uint64, st xtrap.Status) {
	idx, ok := w.byContext[triggerContext]
	if !ok {
		w.logger.Debug(ctx, "event for replaced trigger ignored", xlog.Context(triggerContext))
		return
	}
	target := w.target(idx)
	if st.Closed() {
		fmt.Fprintf(w.out, "gone %s\n", target.path)
		delete(w.byContext, triggerContext)
		if err := w.trap.RemoveTrigger(triggerContext); err != nil && !errors.Is(err, xtrap.ErrNotFound) {
			w.logger.Warn(ctx, "remove trigger failed", xlog.Path(target.path), xlog.Err(err))
		}
		return
	}
	fmt.Fprintf(w.out, "ready %s\n", target.path)
	if err := w.hub.Clear(target.handle, xsignal.Readable); err != nil {
		w.logger.Warn(ctx, "drain failed", xlog.Path(target.path), xlog.Err(err))
	}
}

// addTrigger 以新的 context 为 targets[idx] 注册 trigger。
func (w *watchSession) addTrigger(h xtrap.Handle, idx int) error {
	w.lastContext++
	triggerContext := w.lastContext
	if err := w.trap.AddTrigger(h, xsignal.Readable, xtrap.ConditionSatisfied, triggerContext); err != nil {
		return err
	}
	w.byContext[triggerContext] = idx
	return nil
}

// replace 在路径上重新出现文件后换上新 handle 和新 trigger。
// 当前 handle 仍然打开时什么也不做（同一次重建的重复通知）。
func (w *watchSession) replace(ctx context.Context, idx int) bool {
	target := w.target(idx)
	if err := w.hub.Raise(target.handle, xsignal.Readable); !errors.Is(err, xsignal.ErrHandleClosed) {
		return false
	}

	for c, i := range w.byContext {
		if i != idx {
			continue
		}
		delete(w.byContext, c)
		if err := w.trap.RemoveTrigger(c); err != nil && !errors.Is(err, xtrap.ErrNotFound) {
			w.logger.Warn(ctx, "remove trigger failed", xlog.Path(target.path), xlog.Err(err))
		}
	}

	h, err := w.hub.Create(xsignal.Readable)
	if err != nil {
		w.logger.Warn(ctx, "create handle failed", xlog.Path(target.path), xlog.Err(err))
		return false
	}
	if err := w.addTrigger(h, idx); err != nil {
		_ = w.hub.CloseHandle(h)
		w.logger.Warn(ctx, "add trigger failed", xlog.Path(target.path), xlog.Err(err))
		return false
	}
	w.mu.Lock()
	w.targets[idx].handle = h
	w.mu.Unlock()
	w.logger.Info(ctx, "file recreated", xlog.Path(target.path), xlog.Context(w.lastContext))
	return true
}

func (w *watchSession) target(idx int) watchTarget {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.targets[idx]
}

// report 周期性记录 trap 状态。
func (w *watchSession) report(ctx context.Context) error {
	w.logger.Info(ctx, "trap status",
		xlog.Trap(w.trap.Name()),
		xlog.Count(int64(w.trap.Len())),
		slog.Bool("armed", w.trap.Armed()),
	)
	return nil
}

// onConfigReload 在配置文件变更后应用新的日志级别。
func (w *watchSession) onConfigReload(cfg xconf.Config, err error) {
	ctx := context.Background()
	if err != nil {
		w.logger.Warn(ctx, "config reload failed", xlog.Err(err))
		return
	}
	app, err := decodeConfig(cfg)
	if err != nil {
		w.logger.Warn(ctx, "config reload rejected", xlog.Err(err))
		return
	}
	level, _ := xlog.ParseLevel(app.Log.Level)
	w.logger.SetLevel(level)
	w.logger.Info(ctx, "config reloaded", xlog.Path(cfg.Path()), xlog.Operation("set_level"))
}
