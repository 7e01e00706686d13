package walletctl

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"babywallet/internal/cli"
	"babywallet/internal/core"
	"babywallet/internal/ledger/memory"
	"babywallet/internal/services"
)

func (a *app) newProjectCommand() *cobra.Command {
	var (
		principal string
		monthly   string
		years     int
		rate      string
	)

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project the future value of a savings plan",
		Long:  "Compounds a monthly contribution over whole years. Needs no backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			in := services.EstimateInput{Years: years}
			var err error
			if principal != "" {
				if in.Principal, err = core.ParseMoney(principal); err != nil {
					return fmt.Errorf("--principal: %w", err)
				}
			}
			if in.MonthlyContribution, err = core.ParseMoney(monthly); err != nil {
				return fmt.Errorf("--monthly: %w", err)
			}
			effective := a.cfg.MonthlyRate
			if rate != "" {
				r, err := decimal.NewFromString(rate)
				if err != nil {
					return fmt.Errorf("--rate: %w", err)
				}
				in.Rate, effective = &r, r
			}

			// The estimator reads no ledger data.
			svc := services.NewLedgerService(memory.New(), cli.LedgerSettings(a.cfg), services.WithLogger(a.logger))
			value, err := svc.Estimate(in)
			if err != nil {
				return err
			}

			if a.flagJSON {
				return writeJSON(a.out, map[string]any{
					"principal":            in.Principal,
					"monthly_contribution": in.MonthlyContribution,
					"years":                years,
					"monthly_rate":         effective.String(),
					"projected_value":      value,
				})
			}
			fmt.Fprint(a.out, table{
				Title:   "Projection",
				Headers: []string{"Parameter", "Value"},
				Rows: [][]string{
					{"Principal", in.Principal.String()},
					{"Monthly contribution", in.MonthlyContribution.String()},
					{"Years", fmt.Sprint(years)},
					{"Monthly rate", effective.String()},
					{"Projected value", value.String()},
				},
			}.render())
			return nil
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "", "Starting balance")
	cmd.Flags().StringVar(&monthly, "monthly", "100", "Monthly contribution")
	cmd.Flags().IntVar(&years, "years", 18, "Whole years to project")
	cmd.Flags().StringVar(&rate, "rate", "", "Monthly growth rate (defaults to MONTHLY_RATE)")
	return cmd
}
