package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/insight-agent/insight/server"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of the analysed database",
	RunE:  runTables,
}

func runTables(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.openData(ctx); err != nil {
		return err
	}
	return printTables(ctx, cmd.OutOrStdout(), a.data)
}

// printTables renders one row per table with its row count.
func printTables(ctx context.Context, w io.Writer, tables server.Tables) error {
	names, err := tables.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if len(names) == 0 {
		fmt.Fprintln(w, warnStyle.Render("No tables found."))
		return nil
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Table", "Rows"})
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, name := range names {
		n, err := tables.RowCount(ctx, name)
		if err != nil {
			return fmt.Errorf("count rows of %s: %w", name, err)
		}
		tw.Append([]string{name, strconv.Itoa(n)})
	}
	tw.Render()
	return nil
}
