package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/liftcall/internal/domain/model"
)

// ErrNoFleet is returned by configure when the config has no fleet section.
var ErrNoFleet = errors.New("config has no fleet to submit")

func buildConfigureCommand() *cobra.Command {
	var echo bool

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Submit the fleet from the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if len(cfg.Fleet) == 0 {
				return ErrNoFleet
			}

			client, err := newClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to create remote client: %w", err)
			}
			sess := newSession(cfg, client)
			defer func() { _ = sess.Close(ctx) }()

			res, err := sess.Configure(ctx, cfg.Fleet)
			if err != nil {
				return fmt.Errorf("configure elevators: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message)
			fmt.Fprintf(out, "serviceable floors: %s\n", model.FormatFloors(res.FloorsServiced))
			if echo {
				doc, err := yaml.Marshal(struct {
					Fleet []model.FleetEntry `yaml:"fleet"`
				}{cfg.Fleet})
				if err != nil {
					return fmt.Errorf("encode fleet: %w", err)
				}
				fmt.Fprint(out, string(doc))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&echo, "echo", true, "print the submitted fleet as YAML")

	return cmd
}
