// File: cmd/install.go
package cmd

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download the browser driver and the Chromium build it needs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		err := playwright.Install(&playwright.RunOptions{
			Browsers: []string{"chromium"},
			Verbose:  true,
		})
		if err != nil {
			return fmt.Errorf("installing browser driver: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Browser driver installed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
