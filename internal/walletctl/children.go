package walletctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newChildrenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "children",
		Short: "List an account's children with balances and progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireAccount(); err != nil {
				return err
			}
			if err := a.open(cmd.Context(), false); err != nil {
				return err
			}
			profiles, err := a.svc.ListChildren(cmd.Context(), a.flagAccount)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return writeJSON(a.out, profiles)
			}

			t := table{
				Title:   "Children of " + a.flagAccount,
				Headers: []string{"Name", "Age", "Balance", "Target", "Progress", "Projected at unlock"},
			}
			for _, p := range profiles {
				t.Rows = append(t.Rows, []string{
					p.Name,
					fmt.Sprint(p.Age),
					p.CurrentBalance.String(),
					p.TargetAmount.String(),
					p.ProgressPercentage.String() + "%",
					p.ProjectedValueAt18.String(),
				})
			}
			fmt.Fprint(a.out, t.render())
			return nil
		},
	}
}
