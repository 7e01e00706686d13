// Package walletctl implements the operator command line for the ledger:
// offline projections, statistics, manual settlements and one-off
// contribution runs against the configured backend.
package walletctl

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"babywallet/internal/backend"
	"babywallet/internal/cli"
	"babywallet/internal/config"
	"babywallet/internal/log"
	"babywallet/internal/metrics"
	"babywallet/internal/services"
)

// app carries the flags and lazily opened dependencies shared by every
// subcommand.
type app struct {
	out    io.Writer
	errOut io.Writer

	flagAccount string
	flagJSON    bool

	cfg    *config.Config
	logger *log.Logger
	res    *backend.Result
	svc    *services.LedgerService
}

// NewRootCommand builds the walletctl command tree writing to out.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "Operate the babywallet savings ledger",
		Long:          "Inspect and operate the babywallet ledger: projections, statistics, settlements and contribution runs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.flagAccount, "account", "a", "", "Account to operate on")
	root.PersistentFlags().BoolVar(&a.flagJSON, "json", false, "Print machine-readable JSON")

	root.AddCommand(
		a.newProjectCommand(),
		a.newChildrenCommand(),
		a.newStatsCommand(),
		a.newSettleCommand(),
		a.newContributeCommand(),
	)
	return root
}

// Execute is the main entry point called from cmd/walletctl.
func Execute() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "walletctl: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates configuration once. Logs go to errOut so
// that command output stays parseable.
func (a *app) loadConfig() error {
	if a.cfg != nil {
		return nil
	}
	cli.LoadEnvFile()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: "walletctl",
		Output:    a.errOut,
	})
	return nil
}

// open connects the configured backend and builds the ledger service.
func (a *app) open(ctx context.Context, requireBroker bool) error {
	if a.svc != nil {
		return nil
	}
	if err := a.loadConfig(); err != nil {
		return err
	}
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return err
	}
	bcfg.RequireBroker = requireBroker

	res, err := backend.NewFactory(a.logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	a.res = res
	a.svc = cli.NewLedgerService(a.cfg, res, metrics.NewCollector(a.logger.Logger), a.logger)
	return nil
}

func (a *app) close() error {
	if a.res == nil {
		return nil
	}
	err := a.res.Cleanup()
	a.res, a.svc = nil, nil
	return err
}

func (a *app) requireAccount() error {
	if a.flagAccount == "" {
		return fmt.Errorf("--account is required")
	}
	return nil
}
