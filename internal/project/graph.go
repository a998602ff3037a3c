package project

import (
	"context"

	"github.com/leanprover-community/mathlib-tools/internal/graph"
)

// ImportGraph builds the import graph of the project's sources.
func (p *LeanProject) ImportGraph(ctx context.Context) (*graph.Graph, error) {
	if err := p.requireSrcDirectory(); err != nil {
		return nil, err
	}
	files, err := p.sourceFiles()
	if err != nil {
		return nil, err
	}
	return graph.Build(ctx, p.SrcDirectory(), files, p.env.Config.Jobs)
}

// WriteGraph saves g to path, rendering laid out formats with the
// project's tools runner.
func (p *LeanProject) WriteGraph(ctx context.Context, g *graph.Graph, path string) error {
	return g.Write(ctx, path, p.env.Tools)
}
