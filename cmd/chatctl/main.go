package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	profileFlag string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Control a running chatd",
	Long: "Command-line interface for the chatline daemon.\n" +
		"Every command talks to the daemon of the selected profile over its control socket.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
