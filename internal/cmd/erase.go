package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashkit/flashkit/internal/fastboot"
	"github.com/flashkit/flashkit/internal/output"
)

func addEraseCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "erase <partition>",
		Short: "Erase a partition on the attached device",
		Args:  cobra.ExactArgs(1),
		RunE:  runErase,
	}
	parent.AddCommand(cmd)
}

func runErase(cmd *cobra.Command, args []string) error {
	client, err := fastboot.Open()
	if err != nil {
		return err
	}
	defer client.Close()
	client.SetLogger(cmdLogger())

	if err := client.Erase(args[0]); err != nil {
		return err
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]string{"erased": args[0]})
	}
	if !output.IsQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "Erased %s\n", args[0])
	}
	return nil
}
