package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question about the data",
	Long: `Plan and run the analysis for one question, then print the answer.

Charts and reports are written under the configured output directory and
listed after the answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.start(ctx); err != nil {
		return err
	}

	resp, err := a.runtime.NewAgent().ProcessQuery(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("process query: %w", err)
	}
	printResponse(cmd.OutOrStdout(), resp)
	return nil
}
