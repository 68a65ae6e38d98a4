package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridform/internal/admin"
)

func resetCmd(schemaFile *string) *cobra.Command {
	var (
		all    bool
		reason string
	)

	cmd := &cobra.Command{
		Use:   "reset [table...]",
		Short: "Restore tables to their seed rows",
		Long: `Delete the stored rows of the named tables (or every table with --all)
and write the seed rows from the schema file back. Each reset is recorded
in the audit log.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("name one or more tables or pass --all")
			}

			a, err := bootstrap(cmd.Context(), *schemaFile, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()
			if a.repo == nil {
				return fmt.Errorf("reset needs DATABASE_URL; in-memory tables start from their seed rows")
			}

			r := &admin.Resetter{Form: a.form, Schema: a.file, Repo: a.repo, Logger: a.logger}

			var results []admin.ResetResult
			if all {
				results, err = r.ResetAll(cmd.Context(), reason)
			} else {
				for _, name := range args {
					var res admin.ResetResult
					if res, err = r.Reset(cmd.Context(), name, reason); err != nil {
						break
					}
					results = append(results, res)
				}
			}

			out := cmd.OutOrStdout()
			for _, res := range results {
				fmt.Fprintf(out, "✓ %s: %d rows deleted, %d seeded\n", res.Table, res.Deleted, res.Rows)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "reset every table")
	cmd.Flags().StringVar(&reason, "reason", "cli", "reason recorded in the audit log")

	return cmd
}
