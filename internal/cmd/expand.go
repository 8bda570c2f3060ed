package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flashkit/flashkit/internal/output"
	"github.com/flashkit/flashkit/internal/sparse"
)

func addExpandCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "expand <image> <out>",
		Short: "Materialize a sparse image's fully decoded contents",
		Args:  cobra.ExactArgs(2),
		RunE:  runExpand,
	}
	parent.AddCommand(cmd)
}

func runExpand(cmd *cobra.Command, args []string) error {
	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer in.Close()

	out, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	logger := cmdLogger()
	if err := sparse.Expand(in, out, logger); err != nil {
		return err
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{"written": args[1]})
	}
	if !output.IsQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "Expanded %s -> %s\n", args[0], args[1])
	}
	return nil
}
