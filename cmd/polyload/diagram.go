package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/polyload/pkg/erd"
)

func newDiagramCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "diagram <schema.sql>",
		Short: "Render an ER diagram (Graphviz DOT) from SQL DDL",
		Long: `Parse CREATE TABLE statements and their FOREIGN KEY clauses and print a
Graphviz digraph. Render it with: dot -Tpng er_diagram.dot -o er_diagram.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read schema: %w", err)
			}
			schema := erd.Parse(string(data))

			fmt.Fprintln(cmd.ErrOrStderr(), "Parsed Tables:")
			for _, t := range schema.Tables {
				fmt.Fprintf(cmd.ErrOrStderr(), " - %s\n", t.Name)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Parsed Foreign Keys:")
			for _, fk := range schema.ForeignKeys {
				fmt.Fprintf(cmd.ErrOrStderr(), " - %s: %s -> %s: %s\n", fk.Table, fk.Columns, fk.RefTable, fk.RefColumns)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output) //nolint:gosec // G304: path comes from the operator
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return schema.WriteDOT(w)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the DOT file here instead of stdout")
	return cmd
}
