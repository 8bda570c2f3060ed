package cmd

import (
	"fmt"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/flashkit/flashkit/internal/fastboot"
	"github.com/flashkit/flashkit/internal/output"
	"github.com/flashkit/flashkit/internal/tui"
)

var devicesInteractive bool

func addDevicesCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached Fastboot USB devices",
		Args:  cobra.NoArgs,
		RunE:  runDevices,
	}
	cmd.Flags().BoolVar(&devicesInteractive, "interactive", false, "Browse devices in a scrollable list")
	parent.AddCommand(cmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := fastboot.Devices()
	if err != nil {
		return err
	}

	if devicesInteractive && !output.IsJSON() && len(devices) > 0 {
		program := tea.NewProgram(tui.NewDeviceList(devices), tea.WithOutput(cmd.OutOrStdout()))
		_, err := program.Run()
		return err
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{"devices": devices})
	}

	if len(devices) == 0 {
		if !output.IsQuiet() {
			fmt.Fprintln(cmd.OutOrStdout(), "No Fastboot devices found.")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tVENDOR\tPRODUCT\tBUS\tADDRESS")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%04x\t%04x\t%d\t%d\n", d.Serial, uint16(d.VendorID), uint16(d.ProductID), d.Bus, d.Address)
	}
	return w.Flush()
}
