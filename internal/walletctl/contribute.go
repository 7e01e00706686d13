package walletctl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"babywallet/internal/services"
)

func (a *app) newContributeCommand() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "contribute",
		Short: "Run one contribution scheduler pass",
		Long:  "Records every due contribution once and exits. Safe to repeat: already recorded periods are skipped.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if asOf != "" {
				t, err := time.Parse("2006-01-02", asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				now = t
			}
			if err := a.open(cmd.Context(), false); err != nil {
				return err
			}

			p := services.NewContributionProcessor(a.svc, services.ContributionProcessorConfig{
				Interval:    a.cfg.ContributionInterval,
				Concurrency: a.cfg.ContributionConcurrency,
			}, nil, a.logger)
			run, err := p.ProcessDue(cmd.Context(), now)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return writeJSON(a.out, run)
			}
			fmt.Fprintf(a.out, "Checked %d investments: %d recorded, %d already recorded, %d failed\n",
				run.Checked, run.Recorded, run.Duplicates, run.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "Process as of this date (YYYY-MM-DD) instead of now")
	return cmd
}
