package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/sitepipe/internal/graph"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var graphCmd = &cobra.Command{
	Use:   "graph [node]",
	Short: "Print the task graph",
	Long: `Print the named nodes of the task graph with their children, or only the
given node. Each stage lists the locations it writes.

Examples:
  sitepipe graph
  sitepipe graph build`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	_, _, p, err := setup()
	if err != nil {
		return err
	}
	defer p.Close()

	names := p.Runner().Names()
	if len(args) == 1 {
		names = []string{args[0]}
	}

	out := cmd.OutOrStdout()
	for i, name := range names {
		n, err := p.Node(name)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := printNode(out, n); err != nil {
			return err
		}
	}
	return nil
}

// printNode writes a heading for n followed by its indented subtree.
func printNode(w io.Writer, n *graph.Node) error {
	title := cases.Title(language.English)
	fmt.Fprintf(w, "%s (%s)\n", title.String(strings.ReplaceAll(n.Name(), "-", " ")), n.Kind())

	return graph.Walk(n, func(child *graph.Node, depth int) error {
		if depth == 0 {
			return nil
		}
		indent := strings.Repeat("  ", depth)
		if child.Kind() != graph.KindStage {
			_, err := fmt.Fprintf(w, "%s%s [%s]\n", indent, child.Name(), child.Kind())
			return err
		}

		var outputs []string
		for _, o := range child.Stage().Outputs() {
			outputs = append(outputs, o.String())
		}
		line := indent + child.Name()
		if len(outputs) > 0 {
			line += " -> " + strings.Join(outputs, ", ")
		}
		_, err := fmt.Fprintln(w, line)
		return err
	})
}
