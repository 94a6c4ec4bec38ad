package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	service "github.com/okian/liftcall/internal/app"
	"github.com/okian/liftcall/internal/domain/model"
)

func buildLocateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "locate ID",
		Short: "Print the current position of one elevator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *service.Session) error {
				snap, err := sess.Locate(ctx, model.ElevatorID(args[0]))
				if err != nil {
					return err
				}
				printElevators(cmd.OutOrStdout(), model.Snapshots{snap})
				return nil
			})
		},
	}
}

func buildRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove one elevator from the configured fleet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, sess *service.Session) error {
				msg, err := sess.Decommission(ctx, model.ElevatorID(args[0]))
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, msg)
				v := sess.View()
				if v.State == service.StateUnconfigured {
					fmt.Fprintln(w, "fleet is empty; run configure")
					return nil
				}
				printElevators(w, v.Elevators)
				return nil
			})
		},
	}
}

// withSession attaches a session to the configured fleet for the duration of
// fn.
func withSession(cmd *cobra.Command, fn func(context.Context, *service.Session) error) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create remote client: %w", err)
	}
	sess := newSession(cfg, client)
	defer func() { _ = sess.Close(ctx) }()

	if err := sess.Attach(ctx); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	return fn(ctx, sess)
}
