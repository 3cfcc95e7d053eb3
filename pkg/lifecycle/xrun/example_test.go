package xrun_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/xtrap/pkg/lifecycle/xrun"
	"github.com/omeyang/xtrap/pkg/observability/xlog"
)

func ExampleGroup() {
	g, _ := xrun.NewGroup(context.Background(), xrun.WithLogger(xlog.Discard()))

	g.GoWithName("worker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	g.GoWithName("stopper", func(context.Context) error {
		return errors.New("stop")
	})

	fmt.Println(g.Wait())
	// Output: stop
}
