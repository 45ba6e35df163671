// Package startend chooses a source graph's start and end node sets,
// growing both until every node is reachable from some start and can reach
// some end.
package startend

import (
	"sort"

	"github.com/kqwyf/dialogtrace/model"

	"github.com/kqwyf/dialogtrace/dialoggraph"
)

// Result holds the chosen start and end node sets, sorted ascending.
type Result struct {
	Start []int
	End   []int
}

// Choose grows a start set and an end set over g until every node is
// reachable from some start and can reach some end. preferredStarts lists
// the initial dialogs of the source's talks, in input order, consulted
// before falling back to the degree-based heuristic. An empty graph is the
// only input Choose cannot make progress on; it returns empty sets and the
// caller counts the source as degenerate.
func Choose(g *dialoggraph.Graph, preferredStarts []int) Result {
	nodes := sortedNodes(g)
	if len(nodes) == 0 {
		return Result{}
	}

	outDeg, inDeg := degrees(g, nodes)
	rev := reverseAdj(g, nodes)

	preferred := preferredStarts[:0:0]
	for _, p := range preferredStarts {
		if g.Nodes[p] {
			preferred = append(preferred, p)
		}
	}

	start := make(map[int]bool)
	end := make(map[int]bool)
	for _, n := range nodes {
		if inDeg[n] == 0 {
			start[n] = true
		}
		if outDeg[n] == 0 {
			end[n] = true
		}
	}

	// Either set may be empty here (a pure cycle has no degree-0 nodes);
	// the expansion loop below seeds them.
	d := descendants(g, start, nodes)
	a := ancestors(rev, end, nodes)

	for !coversAll(d, nodes) || !coversAll(a, nodes) {
		var freshStart int
		addedStart := false
		if !coversAll(d, nodes) {
			freshStart, addedStart = pickStart(nodes, d, preferred, outDeg)
			start[freshStart] = true
			d = descendants(g, start, nodes)
		}
		if !coversAll(a, nodes) {
			pickEnd(rev, nodes, a, freshStart, addedStart, outDeg, inDeg, end)
			a = ancestors(rev, end, nodes)
		}
	}

	return Result{Start: sortedKeys(start), End: sortedKeys(end)}
}

func pickStart(nodes []int, d map[int]bool, preferredStarts []int, outDeg map[int]int) (int, bool) {
	for _, p := range preferredStarts {
		if !d[p] {
			return p, true
		}
	}
	best, bestSet := -1, false
	for _, n := range nodes {
		if d[n] {
			continue
		}
		if !bestSet || outDeg[n] > outDeg[best] || (outDeg[n] == outDeg[best] && n < best) {
			best, bestSet = n, true
		}
	}
	return best, true
}

// pickEnd grows the end set: if the freshly added start is itself outside
// A, its predecessors outside A become ends (they precede a node trapped in
// a cycle); otherwise the node in V \ A with the largest total degree is
// chosen, ties broken by largest id (the start-side tie-break prefers the
// smallest id; the asymmetry is intentional).
func pickEnd(rev map[int][]int, nodes []int, a map[int]bool, freshStart int, addedStart bool, outDeg, inDeg map[int]int, end map[int]bool) {
	if addedStart && !a[freshStart] {
		added := false
		for _, p := range rev[freshStart] {
			if !a[p] {
				end[p] = true
				added = true
			}
		}
		if added {
			return
		}
		// No predecessor outside A: fall through to the degree heuristic
		// so the loop still makes progress.
	}

	best, bestSet := -1, false
	for _, n := range nodes {
		if a[n] {
			continue
		}
		total := outDeg[n] + inDeg[n]
		bestTotal := outDeg[best] + inDeg[best]
		if !bestSet || total > bestTotal || (total == bestTotal && n > best) {
			best, bestSet = n, true
		}
	}
	if bestSet {
		end[best] = true
	}
}

func degrees(g *dialoggraph.Graph, nodes []int) (out, in map[int]int) {
	out = make(map[int]int)
	in = make(map[int]int)
	for _, n := range nodes {
		out[n] = len(g.Adj[n])
	}
	for _, n := range nodes {
		for _, m := range g.Adj[n] {
			in[m]++
		}
	}
	return
}

func reverseAdj(g *dialoggraph.Graph, nodes []int) map[int][]int {
	rev := make(map[int][]int)
	for _, n := range nodes {
		for _, m := range g.Adj[n] {
			rev[m] = append(rev[m], n)
		}
	}
	for n := range rev {
		sort.Ints(rev[n])
	}
	return rev
}

func descendants(g *dialoggraph.Graph, seeds map[int]bool, nodes []int) map[int]bool {
	visited := make(map[int]bool)
	var queue []int
	for _, n := range nodes {
		if seeds[n] {
			queue = append(queue, n)
			visited[n] = true
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range g.Adj[n] {
			if !visited[m] {
				visited[m] = true
				queue = append(queue, m)
			}
		}
	}
	return visited
}

func ancestors(rev map[int][]int, seeds map[int]bool, nodes []int) map[int]bool {
	visited := make(map[int]bool)
	var queue []int
	for _, n := range nodes {
		if seeds[n] {
			queue = append(queue, n)
			visited[n] = true
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range rev[n] {
			if !visited[m] {
				visited[m] = true
				queue = append(queue, m)
			}
		}
	}
	return visited
}

func coversAll(set map[int]bool, nodes []int) bool {
	for _, n := range nodes {
		if !set[n] {
			return false
		}
	}
	return true
}

func sortedNodes(g *dialoggraph.Graph) []int {
	ids := make([]int, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// PreferredStarts collects the initial dialogs of src's talks, in input
// order, for use as Choose's preferredStarts argument.
func PreferredStarts(db *model.Database, talkIDs []int) []int {
	var out []int
	for _, tid := range talkIDs {
		t, ok := db.Talks[tid]
		if ok && t.InitDialog != model.NoDialog {
			out = append(out, t.InitDialog)
		}
	}
	return out
}
