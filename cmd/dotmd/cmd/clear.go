package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotmd/dotmd/internal/output"
)

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every file from the index",
		Long:  `Deletes every indexed file from the metadata, vector, BM25, and graph stores, leaving an empty index in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("this removes the entire index; re-run with --yes to confirm")
			}
			return runClear(cmd)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing the index")
	return cmd
}

func runClear(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}

	out.Success("Index cleared")
	return nil
}
