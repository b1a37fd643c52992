package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var connectivityCmd = &cobra.Command{
	Use:   "connectivity",
	Short: "Check network, remote store and provider connectivity",
	Run:   runConnectivity,
}

func init() {
	rootCmd.AddCommand(connectivityCmd)
}

func runConnectivity(_ *cobra.Command, _ []string) {
	_, app, cleanup := mustCreateApp()

	report := app.connectivity.Check(context.Background())
	for _, check := range report.Checks {
		if check.OK() {
			fmt.Printf("%-24s ok\n", check.Name)
			continue
		}
		fmt.Printf("%-24s failed: %v\n", check.Name, check.Err)
	}

	cleanup()
	if !report.OK() {
		os.Exit(1)
	}
}
