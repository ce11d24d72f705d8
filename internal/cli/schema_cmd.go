package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/cascade/schema"
)

// SchemaCmd returns the schema command, which validates a YAML schema and
// prints the compiled types.
func SchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <file.yaml>",
		Short: "Validate a schema file and print its types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadSchema(args[0])
			if err != nil {
				return err
			}
			printGraph(cmd.OutOrStdout(), g)
			return nil
		},
	}
	return cmd
}

func loadSchema(path string) (*schema.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return schema.LoadYAML(f)
}

func printGraph(w io.Writer, g *schema.Graph) {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	for _, t := range g.Types() {
		fmt.Fprintf(w, "%s %s\n", bold.Sprint(t.Name), faint.Sprintf("(%s)", t.Table))
		for _, p := range t.Properties() {
			var desc string
			switch {
			case p.ID:
				desc = fmt.Sprintf("id %s", p.Field.Kind)
			case p.Scalar():
				desc = p.Field.Kind.String()
			default:
				desc = fmt.Sprintf("%s %s", p.Assoc.Rel, p.Assoc.TargetName)
			}
			col := p.Column()
			if col == "" {
				col = "-"
			}
			fmt.Fprintf(w, "  %-16s %-24s %s\n", p.Name, desc, faint.Sprint(col))
		}
		if key := t.Key(); len(key) > 0 {
			names := make([]string, len(key))
			for i, p := range key {
				names[i] = p.Name
			}
			fmt.Fprintf(w, "  key: %s\n", strings.Join(names, ", "))
		}
		if t.Deleted != nil {
			fmt.Fprintf(w, "  logical delete: %s = %v\n", t.Deleted.Field, t.Deleted.Value)
		}
	}
}
