package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kasiski/internal/freq"
)

func newTablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the built-in reference frequency tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-12s %-10s %s\n", "NAME", "SELF-CORR", "COMMON LETTERS")
			for _, name := range freq.Names() {
				t, err := freq.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-12s %-10.5f %s\n", t.Name, t.SelfCorrelation(), commonLetters(t, 6))
			}
			return nil
		},
	}
	cmd.AddCommand(newTablesExportCmd(), newTablesCheckCmd())
	return cmd
}

// commonLetters returns the n most frequent letters of t, most frequent
// first.
func commonLetters(t freq.Table, n int) string {
	idx := make([]int, freq.AlphabetSize)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return t.Freqs[idx[i]] > t.Freqs[idx[j]]
	})
	var b strings.Builder
	for _, i := range idx[:n] {
		b.WriteByte(byte('a' + i))
	}
	return b.String()
}

func newTablesExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Write a built-in table as a custom table file",
		Long: `Write a built-in table in the custom table format, as a starting point
for tables passed with --table or analysis.table_path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := freq.Lookup(args[0])
			if err != nil {
				return err
			}
			doc := freq.DocumentOf(t)
			doc.Description = "exported from the built-in " + t.Name + " table"
			return writeDocument(cmd.OutOrStdout(), doc, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "file format: json, yaml, toml")
	return cmd
}

func writeDocument(w io.Writer, doc freq.Document, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("unknown table format: %s", format)
	}
}

func newTablesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a custom frequency table file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := freq.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (table %q, self-correlation %.5f, common letters %s)\n",
				args[0], t.Name, t.SelfCorrelation(), commonLetters(t, 6))
			return nil
		},
	}
}
