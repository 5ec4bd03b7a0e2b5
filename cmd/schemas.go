package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/projectmerge/internal/normalize"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List the known input schemas",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatSchemas(os.Stdout, normalize.Schemas())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemasCmd)
}

// formatSchemas writes the schema registry to out.
func formatSchemas(out io.Writer, schemas []*normalize.Schema) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSOURCE\tFILE TOKENS\tREQUIRED COLUMNS")
	for _, s := range schemas {
		tokens := strings.Join(s.Tokens, ",")
		if tokens == "" {
			tokens = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.Description, tokens, strings.Join(s.Required, ", "))
	}
	_ = w.Flush()
}
