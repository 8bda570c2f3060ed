package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashkit/flashkit/internal/fastboot"
	"github.com/flashkit/flashkit/internal/output"
)

func addRebootCommands(parent *cobra.Command) {
	rebootCmd := &cobra.Command{
		Use:   "reboot",
		Short: "Reboot the attached device",
		Args:  cobra.NoArgs,
		RunE:  runReboot(func(c *fastboot.Client) error { return c.Reboot() }, "Rebooting device"),
	}

	rebootBootloaderCmd := &cobra.Command{
		Use:   "reboot-bootloader",
		Short: "Reboot the attached device back into the bootloader",
		Args:  cobra.NoArgs,
		RunE:  runReboot(func(c *fastboot.Client) error { return c.RebootBootloader() }, "Rebooting device into bootloader"),
	}

	parent.AddCommand(rebootCmd, rebootBootloaderCmd)
}

func runReboot(op func(*fastboot.Client) error, message string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := fastboot.Open()
		if err != nil {
			return err
		}
		defer client.Close()
		client.SetLogger(cmdLogger())

		if err := op(client); err != nil {
			return err
		}

		if output.IsJSON() {
			return output.PrintJSON(cmd.OutOrStdout(), map[string]string{"status": "ok"})
		}
		if !output.IsQuiet() {
			fmt.Fprintln(cmd.OutOrStdout(), message)
		}
		return nil
	}
}
