package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bookbot",
	Short: "Book Bot Insight answers questions about uploaded PDFs",
	Long: `Book Bot Insight extracts the text of uploaded PDF documents and answers
questions about them with Google Gemini. Accounts are kept in a local user
database and sessions log out after a period of inactivity.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, extractCmd)
}
