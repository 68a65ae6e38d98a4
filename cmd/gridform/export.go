package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridform/internal/importer"
)

func exportCmd(schemaFile *string) *cobra.Command {
	var (
		table    string
		output   string
		template bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a table as CSV",
		Long: `Write every row of a table as CSV in the format import reads.
With --template only the header row is written.`,
		Args: cobra.NoArgs,
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

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}

			if template {
				return importer.WriteTemplate(w, store, spec)
			}
			n, err := importer.Export(w, store, spec)
			if err != nil {
				return err
			}
			a.logger.Info("table exported", "table", table, "rows", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "table to export")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&template, "template", false, "write only the header row")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}
