package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTablesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the base tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			names, err := db.Schema().TableNames(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe TABLE...",
		Short: "Show the columns of tables as the driver reports them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, table := range args {
				cols := db.Schema().OrderedColumns(cmd.Context(), table)
				if len(cols) == 0 {
					return fmt.Errorf("table %s has no readable columns", table)
				}
				fmt.Fprintf(w, "%s\n", table)
				fmt.Fprintln(w, "  COLUMN\tTYPE\tSQL TYPE\tSIZE\tPRECISION\tNULLABLE")
				for _, c := range cols {
					fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%d\t%t\n", c.Name, c.DatabaseType, c.SQLType, c.Size, c.Precision, c.Nullable)
				}
			}
			return w.Flush()
		},
	}
}

func newProbeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe TABLE...",
		Short: "Check that tables answer a trivial select",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			failed := 0
			for _, table := range args {
				status := "ok"
				if !db.Schema().CanReadTable(cmd.Context(), table) {
					status = "unreadable"
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", table, status)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tables unreadable", failed, len(args))
			}
			return nil
		},
	}
}
