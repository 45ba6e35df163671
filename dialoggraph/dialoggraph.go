// Package dialoggraph builds one directed graph per source, inlining talk
// boundaries into the dialog graph for talk-sources, linearizes
// player-choice fans, and writes the result back onto the source.
package dialoggraph

import (
	"sort"

	"github.com/kqwyf/dialogtrace/model"
)

// Graph is a directed graph over dialog ids, adjacency-list form, built for
// exactly one source and discarded once its traces are computed.
type Graph struct {
	Nodes map[int]bool
	Adj   map[int][]int // adjacency lists, first-insertion order
}

func newGraph() *Graph {
	return &Graph{Nodes: make(map[int]bool), Adj: make(map[int][]int)}
}

// Assemble builds the dialog graph for src and writes its node set back as
// src.DialogIDs (sorted). For a talk-source, nodes are every dialog
// reachable from any of the source's talks' initial dialogs, plus the
// boundary edges from each talk's terminal dialogs to the next talk's
// initial dialog. For a dialog-source, nodes are taken from src.DialogIDs
// directly (already partitioned by package source).
func Assemble(db *model.Database, src *model.Source) *Graph {
	var g *Graph
	if len(src.TalkIDs) > 0 {
		g = assembleTalkSource(db, src)
	} else {
		g = assembleDialogSource(db, src)
	}
	ReorderPlayerFans(db, g)

	ids := make([]int, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	src.DialogIDs = ids
	return g
}

func assembleTalkSource(db *model.Database, src *model.Source) *Graph {
	g := newGraph()
	for _, tid := range src.TalkIDs {
		t, ok := db.Talks[tid]
		if !ok || t.InitDialog == model.NoDialog {
			continue
		}
		walkDialogSubtree(db, g, t.InitDialog)
	}

	// Boundary edges: terminal dialog of talk t -> initial dialog of each
	// t.NextTalks.
	talkSet := make(map[int]bool, len(src.TalkIDs))
	for _, tid := range src.TalkIDs {
		talkSet[tid] = true
	}
	for _, tid := range src.TalkIDs {
		t := db.Talks[tid]
		if t.InitDialog == model.NoDialog {
			continue
		}
		terminals := terminalDialogs(db, g, t.InitDialog)
		for _, next := range t.NextTalks {
			if !talkSet[next] {
				continue
			}
			nt, ok := db.Talks[next]
			if !ok || nt.InitDialog == model.NoDialog {
				continue
			}
			walkDialogSubtree(db, g, nt.InitDialog)
			for _, term := range terminals {
				addEdge(g, term, nt.InitDialog)
			}
		}
	}
	return g
}

func assembleDialogSource(db *model.Database, src *model.Source) *Graph {
	g := newGraph()
	inSource := make(map[int]bool, len(src.DialogIDs))
	for _, did := range src.DialogIDs {
		inSource[did] = true
		g.Nodes[did] = true
	}
	for _, did := range src.DialogIDs {
		d, ok := db.Dialogs[did]
		if !ok {
			continue
		}
		for _, next := range d.NextDialogs {
			if inSource[next] {
				addEdge(g, did, next)
			}
		}
	}
	return g
}

func walkDialogSubtree(db *model.Database, g *Graph, start int) {
	if g.Nodes[start] {
		return
	}
	stack := []int{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if g.Nodes[cur] {
			continue
		}
		g.Nodes[cur] = true
		d, ok := db.Dialogs[cur]
		if !ok {
			continue
		}
		for _, next := range d.NextDialogs {
			if _, ok := db.Dialogs[next]; !ok {
				continue
			}
			addEdge(g, cur, next)
			if !g.Nodes[next] {
				stack = append(stack, next)
			}
		}
	}
}

func terminalDialogs(db *model.Database, g *Graph, start int) []int {
	var out []int
	visited := make(map[int]bool)
	stack := []int{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		d, ok := db.Dialogs[cur]
		if !ok {
			continue
		}
		if len(d.NextDialogs) == 0 {
			out = append(out, cur)
		}
		for _, next := range d.NextDialogs {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	sort.Ints(out)
	return out
}

// addEdge appends to from's adjacency list if absent. Lists stay in
// insertion order, which for next-dialog edges is the authored order of
// the raw data: fan linearization below depends on it to keep the
// first-listed player option first.
func addEdge(g *Graph, from, to int) {
	for _, existing := range g.Adj[from] {
		if existing == to {
			return
		}
	}
	g.Adj[from] = append(g.Adj[from], to)
}

func removeEdge(g *Graph, from, to int) {
	kept := g.Adj[from][:0:0]
	for _, existing := range g.Adj[from] {
		if existing != to {
			kept = append(kept, existing)
		}
	}
	g.Adj[from] = kept
}

// ReorderPlayerFans linearizes player-choice fans: whenever node n has
// out-degree >= 2 and every successor has role 0, out-degree 1, and the
// same single join node m, the parallel fan is rewritten into a linear
// chain n -> s0 -> s1 -> ... -> s_{k-1} -> m, with the successors chained
// in n's authored next-dialog order. Idempotent on already-linearized
// graphs.
func ReorderPlayerFans(db *model.Database, g *Graph) {
	changed := true
	for changed {
		changed = false
		for _, n := range sortedNodes(g) {
			successors := g.Adj[n]
			if len(successors) < 2 {
				continue
			}
			joinNode, ok := commonPlayerJoin(db, g, successors)
			if !ok {
				continue
			}
			linearizeFan(g, n, successors, joinNode)
			changed = true
			break // adjacency changed; restart the scan
		}
	}
}

func sortedNodes(g *Graph) []int {
	ids := make([]int, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// commonPlayerJoin reports whether every successor is a role-0 node with
// out-degree exactly 1 pointing at the same join node.
func commonPlayerJoin(db *model.Database, g *Graph, successors []int) (int, bool) {
	join := -1
	for _, s := range successors {
		d, ok := db.Dialogs[s]
		if !ok || d.Role != model.RolePlayer {
			return 0, false
		}
		if len(g.Adj[s]) != 1 {
			return 0, false
		}
		m := g.Adj[s][0]
		if join == -1 {
			join = m
		} else if join != m {
			return 0, false
		}
	}
	return join, join != -1
}

func linearizeFan(g *Graph, n int, successors []int, join int) {
	chain := append([]int{}, successors...)

	for _, s := range chain {
		removeEdge(g, s, join)
	}
	for _, s := range chain[1:] {
		removeEdge(g, n, s)
	}

	for i := 0; i+1 < len(chain); i++ {
		addEdge(g, chain[i], chain[i+1])
	}
	addEdge(g, chain[len(chain)-1], join)
}
