package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "wizardctl",
		Short:        "Inspect and validate vessel wizard transaction definitions",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSlice("dir", []string{"definitions"}, "directories containing transaction definition files")

	root.AddCommand(newValidateCmd(), newDescribeCmd())
	return root
}

// definitionDirs returns the --dir flag value.
func definitionDirs(cmd *cobra.Command) ([]string, error) {
	return cmd.Flags().GetStringSlice("dir")
}
