package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/liftcall/internal/adapters/mq/queue"
	service "github.com/okian/liftcall/internal/app"
	"github.com/okian/liftcall/pkg/logger"
)

const defaultWait = 10 * time.Second

func buildRequestCommand() *cobra.Command {
	var (
		floor int
		wait  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request an elevator to a floor",
		Long: `Attach to the configured fleet, request an elevator to --floor and print
the assigned car. The command waits up to --wait for the floor request to be
delivered, redelivering a stalled request until then.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRequest(cmd, floor, wait)
		},
	}

	cmd.Flags().IntVarP(&floor, "floor", "f", 0, "floor to request")
	cmd.Flags().DurationVar(&wait, "wait", defaultWait, "how long to wait for delivery")
	_ = cmd.MarkFlagRequired("floor")

	return cmd
}

func runRequest(cmd *cobra.Command, floor int, wait time.Duration) error {
	return withSession(cmd, func(ctx context.Context, sess *service.Session) error {
		if err := sess.EnterFloor(floor); err != nil {
			return err
		}
		out, err := sess.RequestElevator(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "elevator %s assigned to floor %d\n", out.AssignedElevator, floor)
		printElevators(w, sess.View().Elevators)

		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		if err := awaitDelivery(waitCtx, sess); err != nil {
			pending := len(sess.PendingRequests())
			logger.Named("request").Warn(ctx, "floor request not yet delivered", logger.Int("pending", pending), logger.Error(err))
			fmt.Fprintf(w, "%s (%d pending)\n", sess.View().QueueLine, pending)
			return fmt.Errorf("floor request not delivered: %w", err)
		}
		fmt.Fprintln(w, sess.View().QueueLine)
		return nil
	})
}

// awaitDelivery waits for the queue to drain, redelivering a stalled request
// until ctx ends.
func awaitDelivery(ctx context.Context, sess *service.Session) error {
	for {
		err := sess.WaitIdle(ctx)
		if !errors.Is(err, queue.ErrStalled) || ctx.Err() != nil {
			return err
		}
		sess.RetryDelivery()
	}
}
