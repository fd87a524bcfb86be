package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bookbotinsight/bookbot/internal/pdf"
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Print the text extracted from PDF files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs := make([]pdf.Document, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			docs = append(docs, pdf.Document{Name: filepath.Base(path), Data: data})
		}

		res := pdf.Extract(docs)
		for _, e := range res.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), e.Error())
		}
		if res.Text == "" {
			return fmt.Errorf("no text extracted from %d file(s)", len(docs))
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return nil
	},
}
