// Command ammsim runs scripted exchange scenarios and offline quotes.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nulln0ne/uniswapv2-engine/internal/logging"
	"github.com/nulln0ne/uniswapv2-engine/internal/scenario"
	"github.com/nulln0ne/uniswapv2-engine/pkg/uniswapv2"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ammsim",
		Short:         "Constant-product exchange simulator",
		SilenceUsage:  true,
	}
	root.AddCommand(newRunCommand(), newQuoteCommand())
	return root
}

type runOptions struct {
	LogLevel string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against a fresh exchange",
		Example: `  # Run a scenario and print the step log and final reserves
  ammsim run testdata/basic.yaml

  # Show every step in the logs
  ammsim run --log-level debug testdata/basic.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	return cmd
}

func runScenario(cmd *cobra.Command, opts *runOptions, path string) error {
	logger := logging.New(cmd.ErrOrStderr(), opts.LogLevel)

	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	logger.Info("running scenario", "name", sc.Name, "steps", len(sc.Steps))

	report, runErr := scenario.NewRunner(logger).Run(sc)
	report.Render(cmd.OutOrStdout())
	if runErr != nil {
		return runErr
	}
	logger.Info("scenario passed", "name", sc.Name)
	return nil
}

type quoteOptions struct {
	Amount     string
	ReserveIn  string
	ReserveOut string
	ExactOut   bool
}

func newQuoteCommand() *cobra.Command {
	opts := &quoteOptions{}
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a single hop against explicit reserves",
		Example: `  # How much does 100 buy from a 1000/4000 pool?
  ammsim quote --amount 100 --reserve-in 1000 --reserve-out 4000

  # How much must be paid to receive 329?
  ammsim quote --exact-out --amount 329 --reserve-in 1000 --reserve-out 4000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuote(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "Input amount, or output amount with --exact-out")
	cmd.Flags().StringVar(&opts.ReserveIn, "reserve-in", "", "Reserve of the token sold")
	cmd.Flags().StringVar(&opts.ReserveOut, "reserve-out", "", "Reserve of the token bought")
	cmd.Flags().BoolVar(&opts.ExactOut, "exact-out", false, "Treat --amount as the desired output")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("reserve-in")
	_ = cmd.MarkFlagRequired("reserve-out")
	return cmd
}

func runQuote(cmd *cobra.Command, opts *quoteOptions) error {
	amount, err := parseAmount("amount", opts.Amount)
	if err != nil {
		return err
	}
	reserveIn, err := parseAmount("reserve-in", opts.ReserveIn)
	if err != nil {
		return err
	}
	reserveOut, err := parseAmount("reserve-out", opts.ReserveOut)
	if err != nil {
		return err
	}

	amountIn, amountOut := amount, amount
	if opts.ExactOut {
		amountIn, err = uniswapv2.GetAmountIn(amount, reserveIn, reserveOut)
	} else {
		amountOut, err = uniswapv2.GetAmountOut(amount, reserveIn, reserveOut)
	}
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "In", "Out"})
	t.AppendRow(table.Row{"Reserve", reserveIn.Dec(), reserveOut.Dec()})
	t.AppendRow(table.Row{"Amount", amountIn.Dec(), amountOut.Dec()})
	t.Render()
	return nil
}

func parseAmount(name, s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(strings.ReplaceAll(s, "_", ""))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}
