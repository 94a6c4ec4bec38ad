package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/liftcall/internal/adapters/mq/poller"
	"github.com/okian/liftcall/internal/domain/model"
	"github.com/okian/liftcall/pkg/logger"
)

func buildWatchCommand() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print elevator positions on the poll interval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			client, err := newClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to create remote client: %w", err)
			}
			return watch(ctx, client, cmd.OutOrStdout(), cfg.PollInterval(), cfg.RequestTimeout(), count)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of polls (0 polls until interrupted)")

	return cmd
}

// watch prints count polls, or polls until ctx ends when count is zero. Failed
// polls are logged by the poller and still count.
func watch(ctx context.Context, f poller.Fetcher, w io.Writer, interval, timeout time.Duration, count int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	polls := 0
	last := func() bool { return count > 0 && polls >= count }
	show := func(_ context.Context, snaps model.Snapshots) {
		fmt.Fprintf(w, "%s\n", time.Now().Format(time.TimeOnly))
		printElevators(w, snaps)
		if last() {
			cancel()
		}
	}
	// The gate runs on one goroutine at a time, so polls needs no lock. A
	// failed final poll never reaches show; the next tick ends the watch.
	gate := func() (poller.Sink, bool) {
		if last() {
			cancel()
			return nil, false
		}
		polls++
		return show, true
	}

	p := poller.New(f, nil,
		poller.WithName("watch"),
		poller.WithInterval(interval),
		poller.WithFetchTimeout(timeout),
		poller.WithGate(gate),
		poller.WithLogger(logger.Named("watch")),
	)

	_ = p.PollOnce(ctx)
	p.Start(ctx)
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
	defer stopCancel()
	return p.Stop(stopCtx)
}
