package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pitabwire/vesselwizard/internal/definition"
)

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [transaction-type]",
		Short: "List transactions or show the steps and fields of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := definitionDirs(cmd)
			if err != nil {
				return err
			}
			defs, err := definition.NewLoader().LoadAll(dirs)
			if err != nil {
				return fmt.Errorf("loading definitions: %w", err)
			}
			reg, err := definition.NewRegistry(defs)
			if err != nil {
				return fmt.Errorf("compiling definitions: %w", err)
			}

			if len(args) == 0 {
				return listTransactions(cmd, reg)
			}
			tx, ok := reg.GetTransaction(args[0])
			if !ok {
				return fmt.Errorf("transaction %q is not defined", args[0])
			}
			return describeTransaction(cmd, tx)
		},
	}
}

func listTransactions(cmd *cobra.Command, reg *definition.Registry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tDOMAIN\tSTEPS\tRULESET\tTITLE")
	for _, tx := range reg.AllTransactions() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", tx.Type, tx.Domain, tx.TotalSteps(), tx.RuleSet, tx.Title)
	}
	return w.Flush()
}

func describeTransaction(cmd *cobra.Command, tx *definition.Transaction) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", tx.Title, tx.Type)
	if tx.Description != "" {
		fmt.Fprintf(out, "  %s\n", tx.Description)
	}
	if tx.RuleSet != "" {
		fmt.Fprintf(out, "  eligibility: %s\n", tx.RuleSet)
	}
	if len(tx.Capabilities) > 0 {
		fmt.Fprintf(out, "  requires: %s\n", strings.Join(tx.Capabilities, ", "))
	}

	for i, step := range tx.Steps {
		fmt.Fprintf(out, "\n%d. %s [%s]\n", i+1, step.Title, step.ID)
		if step.When != "" {
			fmt.Fprintf(out, "   when: %s\n", step.When)
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, f := range step.Fields {
			mandatory := ""
			if f.Mandatory {
				mandatory = "required"
			}
			fmt.Fprintf(w, "   %s\t%s\t%s\n", f.ID, f.Type, mandatory)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if n := len(tx.Rules(i)); n > 0 {
			fmt.Fprintf(out, "   rules: %d\n", n)
		}
	}
	return nil
}
