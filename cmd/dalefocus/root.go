package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dalefocus",
	Short: "Task atomization service",
	Long: `DaleFocus breaks a task the user is stuck on into small concrete
steps, tuned to the emotional barrier in the way: overwhelmed, uncertain,
bored, or perfectionism.

The serve command starts the HTTP API. Clients atomize tasks, report
focus sessions, request reward messages, and read their productivity
metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}
