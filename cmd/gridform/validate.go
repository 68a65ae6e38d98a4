package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridform/internal/core"
)

// errInvalid is returned when any row or table fails validation.
var errInvalid = errors.New("validation failed")

func validateCmd(schemaFile *string) *cobra.Command {
	var (
		tables []string
		fields []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every row of the selected tables",
		Long: `Load the tables and run every rule against every row. Exits non-zero
when any row fails or a named table does not exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *schemaFile, os.Stderr)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.form.ValidateAll(cmd.Context(), core.FormValidateOptions{
				Names:       tables,
				Fields:      fields,
				AllowErrors: true,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				printFormResult(out, res)
			}

			if len(res.NameToErrorInfo) > 0 || len(res.NameToNotFound) > 0 {
				return errInvalid
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&tables, "table", "t", nil, "tables to validate (default: all)")
	cmd.Flags().StringSliceVarP(&fields, "field", "f", nil, "fields to validate (default: all with rules)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")

	return cmd
}

// printFormResult writes one line per table and one per failed row.
func printFormResult(w io.Writer, res *core.FormValidateResult) {
	for _, nf := range res.NameToNotFound {
		fmt.Fprintf(w, "✗ %s: %s\n", nf.Name, nf.Message)
	}
	for _, tr := range res.NameToSuccessInfo {
		fmt.Fprintf(w, "✓ %s: %d rows valid\n", tr.Name, len(tr.DataList))
	}
	for _, tr := range res.NameToErrorInfo {
		fmt.Fprintf(w, "✗ %s: %d rows valid, %d failed\n", tr.Name, len(tr.DataList), len(tr.ErrorInfo))
		keys := make([]string, 0, len(tr.ErrorInfo))
		for k := range tr.ErrorInfo {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			f := tr.ErrorInfo[k]
			if f.Other != nil {
				fmt.Fprintf(w, "    %s: %v\n", k, f.Other)
				continue
			}
			for _, e := range f.Errors {
				fmt.Fprintf(w, "    %s.%s: %s\n", k, e.Field, e.Message)
			}
		}
	}
}
