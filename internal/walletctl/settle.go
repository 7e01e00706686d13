package walletctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"babywallet/internal/amqp"
	"babywallet/internal/core"
)

func (a *app) newSettleCommand() *cobra.Command {
	var (
		outcome string
		direct  bool
	)

	cmd := &cobra.Command{
		Use:   "settle <transaction-id>",
		Short: "Settle a pending transaction",
		Long: "Publishes a settlement outcome for the settlement worker to apply. " +
			"With --direct the outcome is written to the ledger immediately.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := core.TransactionStatus(outcome)
			if status != core.TxCompleted && status != core.TxFailed {
				return fmt.Errorf("--outcome must be %q or %q", core.TxCompleted, core.TxFailed)
			}
			ctx := cmd.Context()

			if direct {
				if err := a.open(ctx, false); err != nil {
					return err
				}
				tx, err := a.svc.SettleTransaction(ctx, a.flagAccount, args[0], status)
				if err != nil {
					return err
				}
				if a.flagJSON {
					return writeJSON(a.out, tx)
				}
				fmt.Fprintf(a.out, "Transaction %s is now %s\n", tx.ID, tx.Status)
				return nil
			}

			if err := a.open(ctx, true); err != nil {
				return err
			}
			msg := amqp.NewSettlementMessage(args[0], a.flagAccount, status)
			if err := a.res.Broker.PublishSettlement(ctx, msg); err != nil {
				return fmt.Errorf("publish settlement: %w", err)
			}
			fmt.Fprintf(a.out, "Published %s outcome for transaction %s\n", status, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&outcome, "outcome", string(core.TxCompleted), "Outcome: completed or failed")
	cmd.Flags().BoolVar(&direct, "direct", false, "Write to the ledger instead of publishing")
	return cmd
}
