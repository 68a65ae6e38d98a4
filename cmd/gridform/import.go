package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridform/internal/importer"
)

func importCmd(schemaFile *string) *cobra.Command {
	var (
		table       string
		failedPath  string
		dropInvalid bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load a CSV file into a table",
		Long: `Read a CSV file into a table and validate the imported rows. Valid
rows are saved, which writes them to PostgreSQL when DATABASE_URL is set.
Failed records can be written to a CSV with a leading Status column.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *schemaFile, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.form.MustStore(table)
			if err != nil {
				return err
			}
			spec, ok := a.file.Table(table)
			if !ok {
				return fmt.Errorf("table %s has no schema", table)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer f.Close()

			rep, err := importer.Import(cmd.Context(), store, spec, f, importer.Options{
				DropInvalid: dropInvalid,
				Commit:      true,
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d inserted, %d updated, %d saved, %d failed\n",
				rep.Table, rep.Inserted, rep.Updated, rep.Saved, len(rep.Failed))

			if failedPath != "" && len(rep.Failed) > 0 {
				if err := writeFailed(failedPath, rep); err != nil {
					return err
				}
				fmt.Fprintf(out, "failed records written to %s\n", failedPath)
			}
			if len(rep.Failed) > 0 {
				return errInvalid
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "table to import into")
	cmd.Flags().StringVar(&failedPath, "failed", "", "write failed records to this CSV file")
	cmd.Flags().BoolVar(&dropInvalid, "drop-invalid", false, "remove rows that fail validation")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func writeFailed(path string, rep *importer.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failed records file: %w", err)
	}
	if err := rep.WriteFailed(f); err != nil {
		f.Close()
		return fmt.Errorf("write failed records: %w", err)
	}
	return f.Close()
}
