package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daygraph/daygraph/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "daygraph-configure",
		Short: "Operations tool for the daygraph API",
		Long:  "CLI tool for inspecting and repairing an owner's node graph",
	}

	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewRepairCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
