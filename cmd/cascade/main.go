package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/cascade/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cascade",
		Short: "cascade - save entity trees into SQL databases",
		Long: `cascade loads entity metadata from a YAML schema and saves JSON entity
trees: parents before children, one lookup per sibling group, batched
inserts and updates.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.SaveCmd())
	rootCmd.AddCommand(cli.SchemaCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
