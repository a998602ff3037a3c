package graph

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/leanprover-community/mathlib-tools/internal/runner"
)

// diamondGraph: a -> b -> d, a -> c -> d, d -> e, plus the shortcut a -> d.
func diamondGraph() *Graph {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	g.AddEdge("b", "d")
	g.AddEdge("c", "d")
	g.AddEdge("a", "d")
	g.AddEdge("d", "e")
	g.AddNode("lonely")
	return g
}

func TestAncestorsAndDescendants(t *testing.T) {
	g := diamondGraph()

	up, err := g.Ancestors("d")
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if got, want := up.IDs(), []string{"a", "b", "c", "d"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected ancestors %v, got %v", want, got)
	}
	if !up.HasEdge("a", "d") || up.HasEdge("d", "e") {
		t.Fatalf("unexpected ancestor edges: %v", up.Edges())
	}

	down, err := g.Descendants("b")
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if got, want := down.IDs(), []string{"b", "d", "e"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected descendants %v, got %v", want, got)
	}

	if _, err := g.Ancestors("nope"); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
}

func TestPath(t *testing.T) {
	g := diamondGraph()
	h, err := g.Path("b", "e")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if got, want := h.IDs(), []string{"b", "d", "e"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	empty, err := g.Path("e", "a")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if empty.Size() != 0 {
		t.Fatalf("expected no modules between e and a, got %v", empty.IDs())
	}
}

func TestExcludeTacticsKeepsTransitiveImports(t *testing.T) {
	g := NewGraph()
	g.AddEdge("tactic.core", "tactic.ring")
	g.AddEdge("tactic.ring", "meta.thing")
	g.AddEdge("meta.thing", "algebra.ring")
	g.AddEdge("tactic.basic", "algebra.ring")

	h := g.ExcludeTactics()
	if got, want := h.IDs(), []string{"algebra.ring", "tactic.basic", "tactic.core"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !h.HasEdge("tactic.core", "algebra.ring") {
		t.Fatalf("expected tactic.core -> algebra.ring edge, got %v", h.Edges())
	}
	if g.Size() != 5 {
		t.Fatalf("expected original graph to be untouched, got %v", g.IDs())
	}
}

func TestTransitiveReduction(t *testing.T) {
	h, err := diamondGraph().TransitiveReduction()
	if err != nil {
		t.Fatalf("reduction: %v", err)
	}
	if h.HasEdge("a", "d") {
		t.Fatal("expected shortcut a -> d to be removed")
	}
	want := []Edge{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}, {"d", "e"}}
	if got := h.Edges(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if h.Size() != 6 {
		t.Fatalf("expected every module to be kept, got %v", h.IDs())
	}
}

func TestLongestPath(t *testing.T) {
	g := diamondGraph()
	path, err := g.LongestPath()
	if err != nil {
		t.Fatalf("longest path: %v", err)
	}
	if want := []string{"a", "b", "d", "e"}; !reflect.DeepEqual(path, want) {
		t.Fatalf("expected %v, got %v", want, path)
	}
	length, err := g.LongestPathLength()
	if err != nil || length != 3 {
		t.Fatalf("expected length 3, got %d (%v)", length, err)
	}

	empty, err := NewGraph().LongestPathLength()
	if err != nil || empty != 0 {
		t.Fatalf("expected 0 for the empty graph, got %d (%v)", empty, err)
	}
}

func TestCycleDetection(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	if _, err := g.LongestPath(); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	if _, err := g.TransitiveReduction(); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestAssignStatus(t *testing.T) {
	cases := []struct {
		comment string
		want    *FileStatus
	}{
		{"Yes mathlib4#123", StatusYes},
		{"No: PR #456", StatusPR},
		{"NO wip by someone", StatusWIP},
		{"No, blocked", StatusNo},
		{"No", nil},
		{"", nil},
		{"maybe", nil},
	}
	for _, tc := range cases {
		if got := AssignStatus(tc.comment); got != tc.want {
			t.Errorf("AssignStatus(%q) = %v, want %v", tc.comment, got, tc.want)
		}
	}
}

func TestApplyPortStatusAndDeletePorted(t *testing.T) {
	g := NewGraph()
	g.AddEdge("logic.basic", "order.basic")
	g.AddEdge("logic.basic", "data.nat")
	g.AddEdge("order.basic", "data.nat")
	g.AddNode("scratch")

	comments, err := ParsePortStatus([]byte("logic.basic: 'Yes mathlib4#1'\norder.basic: 'No, being reviewed'\ndata.nat: No\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g.ApplyPortStatus(comments)

	want := map[string]*FileStatus{
		"logic.basic": StatusYes,
		"order.basic": StatusReady,
		"data.nat":    nil,
		"scratch":     StatusMissing,
	}
	for id, status := range want {
		if got := g.Nodes[id].Status; got != status {
			t.Errorf("status of %s = %v, want %v", id, got, status)
		}
	}

	h := g.DeletePorted()
	if got, want := h.IDs(), []string{"data.nat", "order.basic", "scratch"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseImports(t *testing.T) {
	src := `/-
Copyright (c) 2020. All rights reserved.
-/
import data.nat.basic -- naturals
  tactic.ring /- nested /- comment -/ -/
import .sibling ..parent.thing

/-! # Module doc -/
open nat

import not.this
`
	got := ParseImports([]byte(src))
	want := []string{"data.nat.basic", "tactic.ring", ".sibling", "..parent.thing"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got := ParseImports([]byte("prelude\nimport init.core\ndef x := 1\n")); !reflect.DeepEqual(got, []string{"init.core"}) {
		t.Fatalf("expected prelude to be skipped, got %v", got)
	}
}

func TestResolveImport(t *testing.T) {
	known := map[string]bool{
		"data/nat/basic.lean":    true,
		"data/list/default.lean": true,
		"data/sibling.lean":      true,
		"top.lean":               true,
	}
	cases := []struct {
		file, imp, want string
		ok              bool
	}{
		{"x.lean", "data.nat.basic", "data/nat/basic.lean", true},
		{"x.lean", "data.list", "data/list/default.lean", true},
		{"data/nat/basic.lean", "..sibling", "data/sibling.lean", true},
		{"data/sibling.lean", ".nat.basic", "data/nat/basic.lean", true},
		{"data/sibling.lean", "..top", "top.lean", true},
		{"top.lean", "..escape", "", false},
		{"x.lean", "algebra.group", "", false},
	}
	for _, tc := range cases {
		got, ok := ResolveImport(tc.file, tc.imp, known)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ResolveImport(%q, %q) = %q, %v; want %q, %v", tc.file, tc.imp, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBuildFromSources(t *testing.T) {
	src := t.TempDir()
	writeLean(t, src, "data/nat/basic.lean", "import logic.basic\n")
	writeLean(t, src, "logic/basic.lean", "import core.external\n")
	writeLean(t, src, "algebra/ring.lean", "import data.nat.basic ..logic.basic\n")
	files := []string{"algebra/ring.lean", "data/nat/basic.lean", "logic/basic.lean"}

	g, err := Build(context.Background(), src, files, 2)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []Edge{
		{"data.nat.basic", "algebra.ring"},
		{"logic.basic", "algebra.ring"},
		{"logic.basic", "data.nat.basic"},
	}
	if got := g.Edges(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected edges %v, got %v", want, got)
	}
	if g.Nodes["algebra.ring"].File != "algebra/ring.lean" {
		t.Fatalf("unexpected file %q", g.Nodes["algebra.ring"].File)
	}

	if _, err := Build(context.Background(), src, append(files, "missing.lean"), 2); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWriteFormats(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.Nodes["a"].Status = StatusYes
	dir := t.TempDir()

	if err := g.Write(context.Background(), filepath.Join(dir, "g.rawdot"), nil); err != nil {
		t.Fatalf("rawdot: %v", err)
	}
	raw := readFile(t, filepath.Join(dir, "g.rawdot"))
	for _, want := range []string{`"a" -> "b";`, "fillcolor=green", `"b" [label="b"];`} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected rawdot to contain %q, got:\n%s", want, raw)
		}
	}

	for _, name := range []string{"g.gexf", "g.graphml"} {
		path := filepath.Join(dir, name)
		if err := g.Write(context.Background(), path, nil); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		var doc struct{ XMLName xml.Name }
		if err := xml.Unmarshal([]byte(readFile(t, path)), &doc); err != nil {
			t.Fatalf("%s is not valid XML: %v", name, err)
		}
	}

	if err := g.Write(context.Background(), filepath.Join(dir, "g.txt"), nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestWriteRendersWithDot(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	fake := runner.NewFake()
	var input string
	fake.Handle("dot", func(call runner.Call) (string, error) {
		input = readFile(t, call.Args[len(call.Args)-1])
		return "", nil
	})

	out := filepath.Join(t.TempDir(), "g.svg")
	if err := g.Write(context.Background(), out, fake); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !fake.Ran("dot -Tsvg -o " + out) {
		t.Fatalf("expected dot to render svg, got %v", fake.CommandLines())
	}
	if !strings.Contains(input, `"a" -> "b";`) {
		t.Fatalf("expected dot input to hold the graph, got:\n%s", input)
	}
}

func TestWriteGEXFCarriesStatus(t *testing.T) {
	g := NewGraph()
	g.AddNode("a").Status = StatusWIP
	var buf bytes.Buffer
	if err := g.WriteGEXF(&buf); err != nil {
		t.Fatalf("gexf: %v", err)
	}
	if !strings.Contains(buf.String(), `value="wip"`) {
		t.Fatalf("expected status attribute, got:\n%s", buf.String())
	}
}

func writeLean(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
