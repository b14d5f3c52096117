package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/logger"
	"github.com/teranos/phylo/phylogeny"
	"github.com/teranos/phylo/storage"
)

// UpCmd prints the lineage of a concept
var UpCmd = &cobra.Command{
	Use:   "up <name>",
	Short: "Print the lineage from the root to a concept",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery(queryUp),
}

// DownCmd prints the subtree below a concept
var DownCmd = &cobra.Command{
	Use:   "down <name>",
	Short: "Print a concept and everything below it",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery(queryDown),
}

// SiblingsCmd lists the concepts sharing a parent with a concept
var SiblingsCmd = &cobra.Command{
	Use:   "siblings <name>",
	Short: "List a concept's siblings, itself included",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery(querySiblings),
}

// TaxaCmd lists the primary names below a concept
var TaxaCmd = &cobra.Command{
	Use:   "taxa <name>",
	Short: "List the concept and every descendant name",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery(queryTaxa),
}

var (
	queryDBPath string
	queryJSON   bool
)

func init() {
	for _, c := range []*cobra.Command{UpCmd, DownCmd, SiblingsCmd, TaxaCmd} {
		c.Flags().StringVar(&queryDBPath, "db-path", "", "Database path (overrides config)")
		c.Flags().BoolVarP(&queryJSON, "json", "j", false, "Output JSON")
	}
}

type queryFunc func(ctx context.Context, svc *phylogeny.Service, name string, out io.Writer) error

func runQuery(fn queryFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		database, _, err := openDatabase(queryDBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		svc := phylogeny.New(
			storage.NewRowSource(database, logger.Named("rows")),
			phylogeny.WithLogger(logger.Named("phylogeny.cache")),
		)
		return fn(cmd.Context(), svc, args[0], cmd.OutOrStdout())
	}
}

func notFound(name string) error {
	return errors.WithHint(
		errors.Wrapf(storage.ErrNotFound, "concept %q", name),
		"names are matched exactly, try 'phylo db stats' to check the database is seeded")
}

func queryUp(ctx context.Context, svc *phylogeny.Service, name string, out io.Writer) error {
	up, err := svc.FindUp(ctx, name)
	if err != nil {
		return err
	}
	if up == nil {
		return notFound(name)
	}
	if queryJSON {
		return writeJSON(out, up)
	}
	return render(out, pterm.DefaultTree.WithRoot(conceptTree(up)))
}

func queryDown(ctx context.Context, svc *phylogeny.Service, name string, out io.Writer) error {
	down, err := svc.FindDown(ctx, name)
	if err != nil {
		return err
	}
	if down == nil {
		return notFound(name)
	}
	if queryJSON {
		return writeJSON(out, down)
	}
	return render(out, pterm.DefaultTree.WithRoot(conceptTree(down)))
}

func querySiblings(ctx context.Context, svc *phylogeny.Service, name string, out io.Writer) error {
	sibs, err := svc.FindSiblings(ctx, name)
	if err != nil {
		return err
	}
	if queryJSON {
		return writeJSON(out, sibs)
	}
	if len(sibs) == 0 {
		fmt.Fprintf(out, "%s has no siblings\n", name)
		return nil
	}
	return render(out, pterm.DefaultTable.WithHasHeader().WithData(siblingsTable(sibs)))
}

func queryTaxa(ctx context.Context, svc *phylogeny.Service, name string, out io.Writer) error {
	names, err := svc.FindDescendantNames(ctx, name)
	if err != nil {
		return err
	}
	if queryJSON {
		return writeJSON(out, names)
	}
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return nil
}

// render writes a pterm printer's output to out.
func render(out io.Writer, p interface{ Srender() (string, error) }) error {
	s, err := p.Srender()
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, s)
	return err
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// conceptLabel renders "Name (rank) [alt1, alt2]".
func conceptLabel(name, rank string, alts []string) string {
	var b strings.Builder
	b.WriteString(name)
	if rank != "" {
		fmt.Fprintf(&b, " (%s)", rank)
	}
	if len(alts) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(alts, ", "))
	}
	return b.String()
}

// conceptTree converts a projection to a pterm tree.
func conceptTree(c *phylogeny.ImmutableConcept) pterm.TreeNode {
	node := pterm.TreeNode{Text: conceptLabel(c.Name, c.Rank, c.AlternativeNames)}
	for _, child := range c.Children {
		node.Children = append(node.Children, conceptTree(child))
	}
	return node
}

func siblingsTable(sibs []phylogeny.SimpleConcept) pterm.TableData {
	data := pterm.TableData{{"Name", "Rank", "Alternative names"}}
	for _, s := range sibs {
		data = append(data, []string{s.Name, s.Rank, strings.Join(s.AlternativeNames, ", ")})
	}
	return data
}
