// Package cli defines the Cobra commands for the hearth terminal client.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL     string
	characterName string
	blockingMode  bool
	version       = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:           "hearth",
	Short:         "Terminal client for a Hearth companion-chat server",
	Long:          "Hearth lets you hold a character-scoped conversation with a locally hosted language model.\nEach invocation owns its own session, like one browser tab.",
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Hearth server base URL")
	rootCmd.PersistentFlags().StringVar(&characterName, "character", "", "character to talk to (server default if empty)")
	rootCmd.Flags().BoolVar(&blockingMode, "blocking", false, "use blocking generation instead of streaming")

	rootCmd.AddCommand(charactersCmd)
}
