package main

import (
	"fmt"
	"os"

	"github.com/benvon/cookmate/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "cookmate-configure",
		Short: "Configuration tool for the Cookmate API",
		Long:  "CLI tool for database migrations and rate limit settings",
	}

	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
