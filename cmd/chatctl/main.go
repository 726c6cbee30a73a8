package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Operator and client tool for the direct chat service",
	Long: `chatctl manages the chat database (migrate, seed), mints development
tokens, and can join a conversation from the terminal.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(newMigrateCmd(), newSeedCmd(), newTokenCmd(), newChatCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
