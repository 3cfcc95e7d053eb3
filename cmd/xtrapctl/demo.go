package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xtrap/pkg/observability/xlog"
	"github.com/omeyang/xtrap/pkg/observability/xmetrics"
	"github.com/omeyang/xtrap/pkg/sync/xsignal"
	"github.com/omeyang/xtrap/pkg/sync/xtrap"
)

const demoEventTimeout = 5 * time.Second

func createDemoCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "进程内演示 arm、fire、blocker 轮转与 close",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-blockers",
				Usage: "单次 Arm 报告的 blocker 上限，0 表示不限",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "结束时输出按操作统计的计数",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, app, logger, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			maxBlockers := cmd.Int("max-blockers")
			if maxBlockers < 0 {
				return newUsageError("--max-blockers must not be negative")
			}
			app.Trap.MaxBlockers = int(maxBlockers)
			return runDemo(ctx, stdout, app, logger, cmd.Bool("stats"))
		},
	}
}

// demoRun 持有一次演示用到的 hub、trap 和事件队列。
type demoRun struct {
	out   io.Writer
	hub   *xsignal.Hub
	trap  *xtrap.Trap
	queue *eventQueue
	pipes []xtrap.Handle
}

// runDemo 在进程内用三个"管道"演示 trap 的完整生命周期。
// 输出是确定的：并发交付的事件在打印前按 context 排序。
func runDemo(ctx context.Context, out io.Writer, app appConfig, logger xlog.Logger, stats bool) (err error) {
	observer := xmetrics.Observer(xmetrics.NoopObserver{})
	var reader *sdkmetric.ManualReader
	if stats {
		reader = sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { err = errors.Join(err, provider.Shutdown(context.WithoutCancel(ctx))) }()
		if observer, err = xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(provider)); err != nil {
			return err
		}
	}

	hub, err := xsignal.New(
		xsignal.WithWorkers(app.Hub.Workers),
		xsignal.WithQueueSize(app.Hub.QueueSize),
		xsignal.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, hub.Close()) }()

	d := &demoRun{out: out, hub: hub, queue: newEventQueue()}
	d.trap, err = xtrap.New(hub, d.queue.push,
		xtrap.WithName(app.Trap.Name),
		xtrap.WithMaxBlockers(app.Trap.MaxBlockers),
		xtrap.WithLogger(logger),
		xtrap.WithObserver(observer),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, demoEventTimeout)
	defer cancel()
	if err := d.script(ctx); err != nil {
		_ = d.trap.Close()
		return err
	}

	if reader != nil {
		return printStats(ctx, out, reader)
	}
	return nil
}

func (d *demoRun) script(ctx context.Context) error {
	for i := range 3 {
		h, err := d.hub.Create(0)
		if err != nil {
			return err
		}
		d.pipes = append(d.pipes, h)
		if err := d.trap.AddTrigger(h, xsignal.Readable, xtrap.ConditionSatisfied, uint64(i+1)); err != nil {
			return err
		}
	}
	fmt.Fprintf(d.out, "triggers: %v\n", d.trap.Contexts())

	if err := d.arm(); err != nil {
		return err
	}

	// 一个 trigger 触发，其他 trigger 保持武装。
	if err := d.raise(ctx, 2); err != nil {
		return err
	}
	if err := d.arm(); err != nil {
		return err
	}
	if err := d.hub.Clear(d.pipe(2), xsignal.Readable); err != nil {
		return err
	}
	if err := d.arm(); err != nil {
		return err
	}

	// 两个 trigger 同时就绪：连续 Arm 轮流报告不同的 blocker。
	if err := d.raise(ctx, 1, 3); err != nil {
		return err
	}
	for range 3 {
		if err := d.arm(); err != nil {
			return err
		}
	}
	for _, c := range []uint64{1, 3} {
		if err := d.hub.Clear(d.pipe(c), xsignal.Readable); err != nil {
			return err
		}
	}
	if err := d.arm(); err != nil {
		return err
	}

	if err := d.trap.Close(); err != nil {
		return err
	}
	d.print(d.queue.take())
	return nil
}

func (d *demoRun) pipe(triggerContext uint64) xtrap.Handle {
	return d.pipes[triggerContext-1]
}

// raise 置位 pipes 的 Readable 并等待对应的 fired 事件。
func (d *demoRun) raise(ctx context.Context, contexts ...uint64) error {
	for _, c := range contexts {
		if err := d.hub.Raise(d.pipe(c), xsignal.Readable); err != nil {
			return err
		}
	}
	events, err := d.queue.wait(ctx, len(contexts))
	if err != nil {
		return fmt.Errorf("waiting for %d events: %w", len(contexts), err)
	}
	d.print(events)
	return nil
}

func (d *demoRun) arm() error {
	blockers, err := d.trap.Arm()
	if err != nil {
		return err
	}
	fmt.Fprintln(d.out, formatArm(blockers))
	return nil
}

func (d *demoRun) print(events []xtrap.Event) {
	slices.SortStableFunc(events, func(a, b xtrap.Event) int {
		return cmp.Compare(a.Context, b.Context)
	})
	for _, ev := range events {
		fmt.Fprintln(d.out, formatEvent(ev))
	}
}

func formatArm(blockers []xtrap.Blocker) string {
	if len(blockers) == 0 {
		return "arm: ok"
	}
	parts := make([]string, len(blockers))
	for i, b := range blockers {
		parts[i] = strconv.FormatUint(b.Context, 10)
	}
	return "arm: blocked by [" + strings.Join(parts, " ") + "]"
}

func formatEvent(ev xtrap.Event) string {
	if ev.Kind == xtrap.EventFired {
		return fmt.Sprintf("event: context=%d %s flags=%s signals=%s",
			ev.Context, ev.Kind, ev.Status.Flags, xsignal.Format(ev.Status.Signals))
	}
	return fmt.Sprintf("event: context=%d %s", ev.Context, ev.Kind)
}

// printStats 输出 trap 各操作按结果状态分组的计数。
func printStats(ctx context.Context, out io.Writer, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.WithoutCancel(ctx), &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != xmetrics.MetricOperationTotal {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				st, _ := dp.Attributes.Value(attribute.Key("status"))
				lines = append(lines, fmt.Sprintf("stats: %s/%s=%d", op.AsString(), st.AsString(), dp.Value))
			}
		}
	}
	slices.Sort(lines)
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
