package main

import (
	"os"

	"github.com/dkeye/VoiceMesh/internal/ui"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meshcall",
	Short: "Headless full-mesh video call client",
	Long: `meshcall joins a room on a signaling relay and keeps one direct WebRTC
connection to every other participant (up to 10 per room).`,
}

func init() {
	rootCmd.AddCommand(joinCmd)
}

// Execute runs the root command. Called once by main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString(ui.ErrorStyle.Render("error: "+err.Error()) + "\n")
		os.Exit(1)
	}
}
