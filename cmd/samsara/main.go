// Samsara is the karmic ledger and lifecycle engine.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "samsara",
	Short: "Samsara: karmic ledger and lifecycle engine.",
	Long: `Samsara tracks the moral standing of identities as a karmic token ledger.
It classifies reported actions, applies merit and decay, learns role
transitions, issues atonement plans for transgressions, and carries
identities through death and rebirth when their karma is depleted.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, auditCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
