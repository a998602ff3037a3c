package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/leanprover-community/mathlib-tools/internal/graph"
	"github.com/spf13/cobra"
)

// ImportGraphOptions selects the part of the import graph to output.
type ImportGraphOptions struct {
	To             string
	From           string
	ExcludeTactics bool
	Reduce         bool
	PortStatus     string
	DeletePorted   bool
}

func parseImportGraphOptions(cmd *cobra.Command) (ImportGraphOptions, error) {
	var opts ImportGraphOptions
	var err error
	if opts.To, err = OptionalStringFlag(cmd, "to"); err != nil {
		return opts, err
	}
	if opts.From, err = OptionalStringFlag(cmd, "from"); err != nil {
		return opts, err
	}
	if opts.PortStatus, err = OptionalStringFlag(cmd, "port-status"); err != nil {
		return opts, err
	}
	if opts.ExcludeTactics, err = OptionalBoolFlag(cmd, "exclude-tactics"); err != nil {
		return opts, err
	}
	if opts.Reduce, err = OptionalBoolFlag(cmd, "reduce"); err != nil {
		return opts, err
	}
	if opts.DeletePorted, err = OptionalBoolFlag(cmd, "delete-ported"); err != nil {
		return opts, err
	}
	if opts.DeletePorted && opts.PortStatus == "" {
		return opts, errors.New("--delete-ported needs --port-status")
	}
	return opts, nil
}

// SelectImportGraph applies opts to g, in the order: endpoints, tactic
// exclusion, port status, reduction.
func SelectImportGraph(g *graph.Graph, opts ImportGraphOptions) (*graph.Graph, error) {
	var err error
	switch {
	case opts.To != "" && opts.From != "":
		g, err = g.Path(opts.From, opts.To)
	case opts.To != "":
		g, err = g.Ancestors(opts.To)
	case opts.From != "":
		g, err = g.Descendants(opts.From)
	}
	if err != nil {
		return nil, err
	}
	if opts.ExcludeTactics {
		g = g.ExcludeTactics()
	}
	if opts.PortStatus != "" {
		data, err := os.ReadFile(opts.PortStatus)
		if err != nil {
			return nil, fmt.Errorf("failed to read port status: %w", err)
		}
		comments, err := graph.ParsePortStatus(data)
		if err != nil {
			return nil, err
		}
		g.ApplyPortStatus(comments)
		if opts.DeletePorted {
			g = g.DeletePorted()
		}
	}
	if opts.Reduce {
		if g, err = g.TransitiveReduction(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func RunImportGraph(cmd *cobra.Command, args []string) error {
	opts, err := parseImportGraphOptions(cmd)
	if err != nil {
		return err
	}
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	full, err := p.ImportGraph(ctx)
	if err != nil {
		return err
	}
	g, err := SelectImportGraph(full, opts)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		if err := p.WriteGraph(ctx, g, args[0]); err != nil {
			return err
		}
		fmt.Printf("import-graph: modules=%d output=%s\n", g.Size(), args[0])
		return nil
	}

	chain, err := g.LongestPath()
	if err != nil {
		return err
	}
	fmt.Printf("import-graph: modules=%d imports=%d longest chain=%d\n", g.Size(), len(g.Edges()), max(len(chain)-1, 0))
	if len(chain) > 0 {
		fmt.Printf("chain: %s\n", SummarizePaths(chain, 12))
	}
	return nil
}
