package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tripsplit/internal/core"
	"tripsplit/internal/settle"
)

// input is the file format read by calc.
type input struct {
	Currency string           `json:"currency" yaml:"currency"`
	Members  []string         `json:"members" yaml:"members"`
	Expenses []settle.Expense `json:"expenses" yaml:"expenses"`
}

type jsonResult struct {
	Currency    core.Currency       `json:"currency"`
	Total       float64             `json:"total"`
	Share       float64             `json:"share"`
	Balances    []settle.Balance    `json:"balances"`
	Settlements []settle.Settlement `json:"settlements"`
	Sentences   []string            `json:"sentences"`
	Ignored     []string            `json:"ignored"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "settle",
		Short:         "Compute the payments that settle a shared trip",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCalcCmd(), newCurrenciesCmd())
	return root
}

func newCalcCmd() *cobra.Command {
	var (
		asJSON   bool
		currency string
	)
	cmd := &cobra.Command{
		Use:   "calc FILE",
		Short: "Settle the members and expenses listed in FILE",
		Long: `Reads a JSON or YAML file with members and expenses and prints one
line per payment, e.g. "C owes A €40.00". Use "-" to read JSON from stdin.

  members: [Ana, Marko]
  expenses:
    - payer_name: Ana
      amount: 20.00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if currency != "" {
				in.Currency = currency
			}
			return runCalc(cmd.OutOrStdout(), in, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().StringVar(&currency, "currency", "", "display currency code (overrides the file)")
	return cmd
}

func newCurrenciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "currencies",
		Short: "List supported display currencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, c := range core.Currencies() {
				if _, err := fmt.Fprintf(out, "%s\t%s\t%s\n", c.Code, c.Symbol, c.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func readInput(path string, stdin io.Reader) (input, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return input{}, fmt.Errorf("read %s: %w", path, err)
	}

	var in input
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &in)
	default:
		err = json.Unmarshal(data, &in)
	}
	if err != nil {
		return input{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return in, nil
}

func runCalc(out io.Writer, in input, asJSON bool) error {
	cur := core.DefaultCurrency
	if in.Currency != "" {
		c, ok := core.LookupCurrency(in.Currency)
		if !ok {
			return fmt.Errorf("%w: %q", core.ErrUnknownCurrency, in.Currency)
		}
		cur = c
	}

	members := make([]string, 0, len(in.Members))
	for _, m := range in.Members {
		if name := core.NormalizeName(m); name != "" {
			members = append(members, name)
		}
	}
	if err := settle.CheckExpenses(in.Expenses); err != nil {
		return err
	}
	expenses := make([]settle.Expense, len(in.Expenses))
	for i, e := range in.Expenses {
		expenses[i] = settle.Expense{PayerName: core.NormalizeName(e.PayerName), Amount: e.Amount}
	}

	r := settle.DefaultCalculator.Compute(expenses, members)
	sentences := settle.FormatAll(r.Settlements, cur)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonResult{
			Currency:    cur,
			Total:       r.Total.Float(),
			Share:       r.Share.Float(),
			Balances:    nonNil(r.Balances),
			Settlements: nonNil(r.Settlements),
			Sentences:   sentences,
			Ignored:     nonNil(r.Ignored),
		})
	}

	var errs []error
	for _, s := range sentences {
		_, err := fmt.Fprintln(out, s)
		errs = append(errs, err)
	}
	if len(r.Ignored) > 0 {
		_, err := fmt.Fprintf(out, "ignored payers (not members): %s\n", strings.Join(r.Ignored, ", "))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
