package graph

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leanprover-community/mathlib-tools/internal/fileutil"
	"github.com/leanprover-community/mathlib-tools/internal/runner"
)

// ErrUnsupportedFormat is returned by Write for unknown file suffixes.
var ErrUnsupportedFormat = errors.New("unsupported graph output format: use .dot, .rawdot, .gexf, .graphml or a graphviz output format (.pdf, .svg, .png)")

// RenderedFormats are written by the graphviz dot binary.
var RenderedFormats = []string{".dot", ".pdf", ".svg", ".png"}

// Write saves the graph to path in the format given by its suffix. Laid
// out formats run `dot` through r.
func (g *Graph) Write(ctx context.Context, path string, r runner.Runner) error {
	ext := strings.ToLower(filepath.Ext(path))
	var buf bytes.Buffer
	switch ext {
	case ".rawdot":
		if err := g.WriteDot(&buf); err != nil {
			return err
		}
	case ".gexf":
		if err := g.WriteGEXF(&buf); err != nil {
			return err
		}
	case ".graphml":
		if err := g.WriteGraphML(&buf); err != nil {
			return err
		}
	default:
		for _, rendered := range RenderedFormats {
			if ext == rendered {
				return g.render(ctx, path, ext[1:], r)
			}
		}
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0644)
}

func (g *Graph) render(ctx context.Context, path, format string, r runner.Runner) error {
	tmp, err := os.CreateTemp("", "import-graph-*.dot")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := g.WriteDot(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	_, err = r.Run(ctx, "", "dot", "-T"+format, "-o", abs, tmp.Name())
	return err
}

// WriteDot writes the graph in graphviz syntax without layout. Modules
// with a port status are filled with its color.
func (g *Graph) WriteDot(w io.Writer) error {
	var b strings.Builder
	b.WriteString("strict digraph {\n")
	for _, id := range g.IDs() {
		node := g.Nodes[id]
		fmt.Fprintf(&b, "%s [label=%s", strconv.Quote(id), strconv.Quote(id))
		if node.Status != nil {
			fmt.Fprintf(&b, ", status=%s, style=filled, fillcolor=%s", node.Status.Name, node.Status.Color)
		}
		b.WriteString("];\n")
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "%s -> %s;\n", strconv.Quote(e.From), strconv.Quote(e.To))
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

type gexfDoc struct {
	XMLName xml.Name  `xml:"gexf"`
	XMLNS   string    `xml:"xmlns,attr"`
	Version string    `xml:"version,attr"`
	Graph   gexfGraph `xml:"graph"`
}

type gexfGraph struct {
	DefaultEdgeType string          `xml:"defaultedgetype,attr"`
	Mode            string          `xml:"mode,attr"`
	Attributes      *gexfAttributes `xml:"attributes,omitempty"`
	Nodes           []gexfNode      `xml:"nodes>node"`
	Edges           []gexfEdge      `xml:"edges>edge"`
}

type gexfAttributes struct {
	Class     string          `xml:"class,attr"`
	Attribute []gexfAttribute `xml:"attribute"`
}

type gexfAttribute struct {
	ID    string `xml:"id,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type gexfNode struct {
	ID        string         `xml:"id,attr"`
	Label     string         `xml:"label,attr"`
	AttValues []gexfAttValue `xml:"attvalues>attvalue,omitempty"`
}

type gexfAttValue struct {
	For   string `xml:"for,attr"`
	Value string `xml:"value,attr"`
}

type gexfEdge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

// WriteGEXF writes the graph as GEXF 1.2, the format read by Gephi.
func (g *Graph) WriteGEXF(w io.Writer) error {
	doc := gexfDoc{
		XMLNS:   "http://www.gexf.net/1.2draft",
		Version: "1.2",
		Graph:   gexfGraph{DefaultEdgeType: "directed", Mode: "static"},
	}
	withStatus := false
	for _, id := range g.IDs() {
		node := gexfNode{ID: id, Label: id}
		if status := g.Nodes[id].Status; status != nil {
			withStatus = true
			node.AttValues = []gexfAttValue{{For: "0", Value: status.Name}}
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, node)
	}
	if withStatus {
		doc.Graph.Attributes = &gexfAttributes{
			Class:     "node",
			Attribute: []gexfAttribute{{ID: "0", Title: "status", Type: "string"}},
		}
	}
	for i, e := range g.Edges() {
		doc.Graph.Edges = append(doc.Graph.Edges, gexfEdge{ID: strconv.Itoa(i), Source: e.From, Target: e.To})
	}
	return writeXML(w, doc)
}

type graphMLDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphMLData `xml:"data"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type graphMLEdge struct {
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

// WriteGraphML writes the graph as GraphML, the format read by yEd.
func (g *Graph) WriteGraphML(w io.Writer) error {
	doc := graphMLDoc{
		XMLNS: "http://graphml.graphdrawing.org/xmlns",
		Keys: []graphMLKey{
			{ID: "d0", For: "node", AttrName: "label", AttrType: "string"},
			{ID: "d1", For: "node", AttrName: "status", AttrType: "string"},
		},
		Graph: graphMLGraph{EdgeDefault: "directed"},
	}
	for _, id := range g.IDs() {
		node := graphMLNode{ID: id, Data: []graphMLData{{Key: "d0", Value: id}}}
		if status := g.Nodes[id].Status; status != nil {
			node.Data = append(node.Data, graphMLData{Key: "d1", Value: status.Name})
		}
		doc.Graph.Nodes = append(doc.Graph.Nodes, node)
	}
	for _, e := range g.Edges() {
		doc.Graph.Edges = append(doc.Graph.Edges, graphMLEdge{Source: e.From, Target: e.To})
	}
	return writeXML(w, doc)
}

func writeXML(w io.Writer, doc any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
