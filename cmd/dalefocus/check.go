package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dalefocus/dalefocus/internal/config"
	"github.com/dalefocus/dalefocus/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the local setup",
	Long: `Checks that DaleFocus can run: configuration loads, Anthropic
credentials are present, and the sqlite store opens and migrates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck()
	},
}

func runCheck() error {
	failed := false

	cfg, err := config.Load()
	if err != nil {
		printStatus("✗", fmt.Sprintf("Config failed to load: %v", err), color.FgRed)
		return fmt.Errorf("configuration unusable")
	}
	printStatus("✓", "Config loaded", color.FgGreen)

	if cfg.Anthropic.Configured() {
		printStatus("✓", "Anthropic credentials configured", color.FgGreen)
	} else {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (atomization will fail until it is)", color.FgYellow)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		printStatus("✗", fmt.Sprintf("Store failed to open: %v", err), color.FgRed)
		failed = true
	} else {
		defer db.Close()
		if err := db.Migrate(); err != nil {
			printStatus("✗", fmt.Sprintf("Store failed to migrate: %v", err), color.FgRed)
			failed = true
		} else {
			printStatus("✓", fmt.Sprintf("Store ready at %s", cfg.Store.Path), color.FgGreen)
		}
	}

	if failed {
		os.Exit(1)
	}
	return nil
}

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, attr color.Attribute) {
	c := color.New(attr)
	c.Printf("%s ", symbol)
	fmt.Println(message)
}
