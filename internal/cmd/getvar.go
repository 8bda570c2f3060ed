package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flashkit/flashkit/internal/fastboot"
	"github.com/flashkit/flashkit/internal/output"
)

func addGetvarCommands(parent *cobra.Command) {
	getvarCmd := &cobra.Command{
		Use:   "getvar <name>",
		Short: "Query a single Fastboot device variable",
		Args:  cobra.ExactArgs(1),
		RunE:  runGetvar,
	}

	getvarAllCmd := &cobra.Command{
		Use:   "getvar-all",
		Short: "Query all Fastboot device variables",
		Args:  cobra.NoArgs,
		RunE:  runGetvarAll,
	}

	parent.AddCommand(getvarCmd, getvarAllCmd)
}

func runGetvar(cmd *cobra.Command, args []string) error {
	client, err := fastboot.Open()
	if err != nil {
		return err
	}
	defer client.Close()
	client.SetLogger(cmdLogger())

	value, err := client.GetVar(args[0])
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]string{args[0]: value})
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runGetvarAll(cmd *cobra.Command, args []string) error {
	client, err := fastboot.Open()
	if err != nil {
		return err
	}
	defer client.Close()
	client.SetLogger(cmdLogger())

	vars, err := client.GetAllVars()
	if err != nil {
		return err
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), vars)
	}

	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, k := range names {
		fmt.Fprintf(w, "%s\t%s\n", k, vars[k])
	}
	return w.Flush()
}
