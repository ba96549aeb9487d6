// Package graph composes stages into sequence and parallel nodes and runs
// them.
//
// A Sequence runs its children in declared order and stops at the first
// failure. A Parallel starts every child at once and waits for all of them;
// siblings of a failing child are not cancelled. Errors keep the identity of
// the failing stage (see errors.StageOf) and gain the path of the composite
// nodes they crossed.
package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Stage is the smallest unit of work in a graph.
type Stage interface {
	Name() string
	// Outputs declares every location the stage writes.
	Outputs() []Output
	Run(ctx context.Context) error
}

// Output is a declared write location: files matching Pattern directly
// inside Dir. Pattern never crosses a directory boundary.
type Output struct {
	Dir     string
	Pattern string
}

// String returns the joined location.
func (o Output) String() string {
	return filepath.Join(o.Dir, o.Pattern)
}

// Overlaps reports whether some file could be written through both a and b.
func (o Output) Overlaps(other Output) bool {
	if filepath.Clean(o.Dir) != filepath.Clean(other.Dir) {
		return false
	}
	if o.Pattern == other.Pattern {
		return true
	}

	aLiteral := !hasMeta(o.Pattern)
	bLiteral := !hasMeta(other.Pattern)
	switch {
	case aLiteral && bLiteral:
		return false
	case aLiteral:
		ok, err := filepath.Match(other.Pattern, o.Pattern)
		return err != nil || ok
	case bLiteral:
		ok, err := filepath.Match(o.Pattern, other.Pattern)
		return err != nil || ok
	default:
		// two wildcards in one directory may always collide
		return true
	}
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[\`)
}

// Kind identifies how a node runs.
type Kind int

const (
	KindStage Kind = iota
	KindSequence
	KindParallel
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindStage:
		return "stage"
	case KindSequence:
		return "sequence"
	case KindParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// Node is a stage or a composition of nodes. Nodes are built once and may
// be run many times.
type Node struct {
	name     string
	kind     Kind
	stage    Stage
	children []*Node
}

// Leaf wraps a single stage.
func Leaf(stage Stage) *Node {
	return &Node{name: stage.Name(), kind: KindStage, stage: stage}
}

// Sequence creates a node that runs children in order, aborting on the
// first failure.
func Sequence(name string, children ...*Node) *Node {
	return &Node{name: name, kind: KindSequence, children: compact(children)}
}

// Parallel creates a node that runs children concurrently and fails if any
// child fails.
func Parallel(name string, children ...*Node) *Node {
	return &Node{name: name, kind: KindParallel, children: compact(children)}
}

func compact(children []*Node) []*Node {
	out := make([]*Node, 0, len(children))
	for _, child := range children {
		if child != nil {
			out = append(out, child)
		}
	}
	return out
}

func (n *Node) Name() string      { return n.name }
func (n *Node) Kind() Kind        { return n.kind }
func (n *Node) Children() []*Node { return n.children }
func (n *Node) Stage() Stage      { return n.stage }

// Stages returns every stage below n in declaration order.
func (n *Node) Stages() []Stage {
	if n.kind == KindStage {
		return []Stage{n.stage}
	}
	var stages []Stage
	for _, child := range n.children {
		stages = append(stages, child.Stages()...)
	}
	return stages
}

// Outputs returns every output declared below n.
func (n *Node) Outputs() []Output {
	var outputs []Output
	for _, stage := range n.Stages() {
		outputs = append(outputs, stage.Outputs()...)
	}
	return outputs
}

// Walk visits n and its descendants depth first. Returning an error stops
// the walk.
func Walk(n *Node, fn func(n *Node, depth int) error) error {
	return walk(n, 0, fn)
}

func walk(n *Node, depth int, fn func(n *Node, depth int) error) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	for _, child := range n.children {
		if err := walk(child, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// String renders the node as a compact expression, e.g.
// "style-compile=[(sass-compile | template-css-compile) -> concat-styles]".
func (n *Node) String() string {
	switch n.kind {
	case KindStage:
		return n.name
	case KindSequence:
		return n.name + "=[" + joinChildren(n.children, " -> ") + "]"
	default:
		return n.name + "=(" + joinChildren(n.children, " | ") + ")"
	}
}

func joinChildren(children []*Node, sep string) string {
	parts := make([]string, len(children))
	for i, child := range children {
		parts[i] = child.String()
	}
	return strings.Join(parts, sep)
}

// describe is used in error messages.
func (n *Node) describe() string {
	return fmt.Sprintf("%s %s", n.kind, n.name)
}
