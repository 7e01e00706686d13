package walletctl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) newStatsCommand() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard totals and monthly activity for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAccount(); err != nil {
				return err
			}
			if err := a.open(cmd.Context(), false); err != nil {
				return err
			}
			ctx := cmd.Context()

			dash, err := a.svc.DashboardStats(ctx, a.flagAccount)
			if err != nil {
				return err
			}
			buckets, err := a.svc.TransactionStats(ctx, a.flagAccount, period)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return writeJSON(a.out, map[string]any{"dashboard": dash, "months": buckets})
			}

			fmt.Fprint(a.out, table{
				Title:   "Dashboard",
				Headers: []string{"Metric", "Value"},
				Rows: [][]string{
					{"Total savings", dash.TotalSavings.String()},
					{"Children", fmt.Sprint(dash.TotalChildren)},
					{"Investments", fmt.Sprint(dash.TotalInvestments)},
					{"Active contracts", fmt.Sprint(dash.ActiveContracts)},
					{"Monthly growth", dash.MonthlyGrowth.String()},
					{"Change", dash.PercentageChange.String() + "%"},
				},
			}.render())

			t := table{
				Title:   "Monthly activity",
				Headers: []string{"Month", "Contributions", "Withdrawals", "Fees", "Other", "Net", "Balance"},
			}
			for _, b := range buckets {
				month := time.Date(b.Year, time.Month(b.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
				t.Rows = append(t.Rows, []string{
					month,
					b.Contributions.String(),
					b.Withdrawals.String(),
					b.Fees.String(),
					b.Other.String(),
					b.Net.String(),
					b.Balance.String(),
				})
			}
			fmt.Fprint(a.out, t.render())
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", "6m", "Trailing window: 1m, 3m, 6m or 1y")
	return cmd
}
