package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/internal/transactions"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check definitions for structural errors",
		Long: `Loads every definition file, then checks step and field structure, rule
expressions, step conditions and that each rule set names a registered
eligibility rule set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dirs, err := definitionDirs(cmd)
			if err != nil {
				return err
			}
			return runValidate(cmd, dirs)
		},
	}
}

func runValidate(cmd *cobra.Command, dirs []string) error {
	out := cmd.OutOrStdout()

	defs, err := definition.NewLoader().LoadAll(dirs)
	if err != nil {
		return fmt.Errorf("loading definitions: %w", err)
	}

	verrs := definition.NewValidator(transactions.Names()...).Validate(defs)
	for _, ve := range verrs {
		fmt.Fprintf(out, "%s\n", ve.Error())
	}
	if len(verrs) > 0 {
		return fmt.Errorf("%d validation errors", len(verrs))
	}

	reg, err := definition.NewRegistry(defs)
	if err != nil {
		return fmt.Errorf("compiling definitions: %w", err)
	}
	fmt.Fprintf(out, "%d transactions valid (checksum %s)\n", len(reg.AllTransactions()), reg.Checksum())
	return nil
}
