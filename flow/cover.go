package flow

import (
	"sort"

	"github.com/kqwyf/dialogtrace/dialoggraph"
)

// key identifies a directed real-graph edge (u,v) for residual-flow
// bookkeeping during walk extraction and loop folding.
type key struct{ from, to int }

// Cover finds the minimum set of directed walks (as dialog id sequences)
// from a start to an end that together cover every node of g, by reducing
// to minimum-cost flow over a split-vertex auxiliary graph. starts/ends
// must be non-empty and subsets of g.Nodes.
func Cover(g *dialoggraph.Graph, starts, ends []int) [][]int {
	nodeIDs := sortedNodeIDs(g)
	if len(nodeIDs) == 0 {
		return nil
	}
	n := len(nodeIDs)
	idx := make(map[int]int, n)
	for i, id := range nodeIDs {
		idx[id] = i
	}

	plus := func(i int) int { return i }
	minus := func(i int) int { return n + i }
	sigma := 2 * n
	tau := 2*n + 1
	ss := 2*n + 2
	tt := 2*n + 3

	mg := newMCMF(2*n + 4)

	realEdge := make(map[key]int) // (u,v) real dialog edge -> mcmf edge id
	sigmaEdge := make(map[int]int)
	endEdge := make(map[int]int)

	for _, u := range nodeIDs {
		for _, v := range g.Adj[u] {
			if _, ok := idx[v]; !ok {
				continue
			}
			id := mg.addEdge(minus(idx[u]), plus(idx[v]), infCap, 0)
			realEdge[key{u, v}] = id
		}
	}
	for _, s := range starts {
		if _, ok := idx[s]; !ok {
			continue
		}
		sigmaEdge[s] = mg.addEdge(sigma, plus(idx[s]), infCap, 0)
	}
	for _, t := range ends {
		if _, ok := idx[t]; !ok {
			continue
		}
		endEdge[t] = mg.addEdge(minus(idx[t]), tau, infCap, 0)
	}
	tauSigma := mg.addEdge(tau, sigma, infCap, n)
	for i := 0; i < n; i++ {
		// Unit lower bound on the split edge, realized as ss/tt demand
		// edges, plus the residual above the bound: revisiting a node
		// costs 1, so minimization prefers reuse over a new walk (whose
		// τ→σ edge costs |V|) but never blocks walks sharing a node.
		mg.addEdge(ss, minus(i), 1, 0)
		mg.addEdge(plus(i), tt, 1, 0)
		mg.addEdge(plus(i), minus(i), infCap, 1)
	}

	mg.run(ss, tt)
	// k is the number of genuine start-to-end walks: flow that is routed
	// through the τ→σ edge because no closed real-edge circuit could
	// satisfy a node's split-edge demand locally. A node whose demand is
	// fully satisfied by a real-edge cycle never touches σ/τ at all (k may
	// legitimately be 0 even though the source has nodes to cover); such
	// cycles are left for foldLeftoverCycles below instead of being forced
	// through walk extraction here.
	k := mg.edgeFlow(tauSigma)

	remaining := make(map[key]int, len(realEdge))
	for k2, id := range realEdge {
		remaining[k2] = mg.edgeFlow(id)
	}
	sigmaRemaining := make(map[int]int, len(sigmaEdge))
	for s, id := range sigmaEdge {
		sigmaRemaining[s] = mg.edgeFlow(id)
	}
	endRemaining := make(map[int]int, len(endEdge))
	for t, id := range endEdge {
		endRemaining[t] = mg.edgeFlow(id)
	}

	traces := make([][]int, 0, k)
	covered := make(map[int]bool)

	for iter := 0; iter < k; iter++ {
		cur, ok := pickSigmaStart(sigmaRemaining)
		if !ok {
			break
		}
		sigmaRemaining[cur]--
		walk := []int{cur}
		covered[cur] = true
		for {
			next, toEnd, ok := pickNextHop(g, cur, remaining, endRemaining, idx)
			if !ok {
				break
			}
			if toEnd {
				endRemaining[cur]--
				break
			}
			remaining[key{cur, next}]--
			cur = next
			walk = append(walk, cur)
			covered[cur] = true
		}
		traces = append(traces, walk)
	}

	foldLeftoverCycles(g, nodeIDs, idx, remaining, covered, starts, ends, &traces)

	return traces
}

func pickSigmaStart(remaining map[int]int) (int, bool) {
	best, bestFlow, found := 0, -1, false
	starts := make([]int, 0, len(remaining))
	for s := range remaining {
		starts = append(starts, s)
	}
	sort.Ints(starts)
	for _, s := range starts {
		if remaining[s] > bestFlow {
			best, bestFlow, found = s, remaining[s], true
		}
	}
	return best, found && bestFlow > 0
}

// pickNextHop chooses the outgoing arc from cur with the highest remaining
// flow, preferring a concrete node over ending the walk at τ on ties, with
// smallest node id as the final tie-break.
func pickNextHop(g *dialoggraph.Graph, cur int, remaining map[key]int, endRemaining map[int]int, idx map[int]int) (next int, toEnd, ok bool) {
	type cand struct {
		target int
		toEnd  bool
		flow   int
	}
	var cands []cand
	for _, v := range g.Adj[cur] {
		if _, present := idx[v]; !present {
			continue
		}
		if f := remaining[key{cur, v}]; f > 0 {
			cands = append(cands, cand{target: v, flow: f})
		}
	}
	if f := endRemaining[cur]; f > 0 {
		cands = append(cands, cand{toEnd: true, flow: f})
	}
	if len(cands) == 0 {
		return 0, false, false
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].flow != cands[j].flow {
			return cands[i].flow > cands[j].flow
		}
		if cands[i].toEnd != cands[j].toEnd {
			return !cands[i].toEnd // concrete node before sink
		}
		return cands[i].target < cands[j].target
	})
	best := cands[0]
	return best.target, best.toEnd, true
}

func sortedNodeIDs(g *dialoggraph.Graph) []int {
	ids := make([]int, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// foldLeftoverCycles handles flow left only on internal cycles: any node
// whose mandatory unit of coverage flow never touched a σ-originated walk
// forms a residual cycle in real-edge space. Each such cycle is either spliced into
// an existing trace at a shared node, or stitched into a brand-new trace
// via shortest paths from the start set and to the end set.
func foldLeftoverCycles(g *dialoggraph.Graph, nodeIDs []int, idx map[int]int, remaining map[key]int, covered map[int]bool, starts, ends []int, traces *[][]int) {
	for _, v := range nodeIDs {
		if covered[v] {
			continue
		}
		cycle := traceCycle(g, v, remaining, idx)
		if len(cycle) == 0 {
			// No residual cycle through v (the flow bookkeeping ran dry on
			// an adjacent cycle's boundary): cover v with a direct
			// start-to-end walk through it.
			synthesizeTrace(g, []int{v}, starts, ends, covered, traces)
			continue
		}

		cycleSet := make(map[int]bool, len(cycle))
		for _, n := range cycle {
			cycleSet[n] = true
			covered[n] = true
		}

		// Splice into an existing walk at the first node the walk shares
		// with the cycle, rotating the cycle to start there.
		spliced := false
		for ti, t := range *traces {
			pos := -1
			for i, n := range t {
				if cycleSet[n] {
					pos = i
					break
				}
			}
			if pos >= 0 {
				rotated := rotateTo(cycle, t[pos])
				(*traces)[ti] = spliceAt(t, pos, rotated)
				spliced = true
				break
			}
		}
		if spliced {
			continue
		}

		synthesizeTrace(g, cycle, starts, ends, covered, traces)
	}
}

// synthesizeTrace builds a brand-new trace covering cycle (a node sequence
// with real edges between consecutive elements and, when longer than one
// node, from its last back to its first): shortest path from the start set
// to the cycle's entrance, the cycle rotated to that entrance, then the
// shortest path from the cycle's exit to the end set.
func synthesizeTrace(g *dialoggraph.Graph, cycle []int, starts, ends []int, covered map[int]bool, traces *[][]int) {
	cycleSet := make(map[int]bool, len(cycle))
	for _, n := range cycle {
		cycleSet[n] = true
	}
	entry := bfsPathToAnyOf(g, starts, cycleSet)

	rotated := cycle
	if len(entry) > 0 {
		rotated = rotateTo(cycle, entry[len(entry)-1])
	}
	exit := rotated[len(rotated)-1]
	toEnd := bfsPathToAny(g, exit, ends)

	var full []int
	if len(entry) > 0 {
		full = append(full, entry...)
		full = append(full, rotated[1:]...)
	} else {
		full = append(full, rotated...)
	}
	if len(toEnd) > 0 {
		full = append(full, toEnd[1:]...)
	}
	for _, n := range full {
		covered[n] = true
	}
	*traces = append(*traces, full)
}

// traceCycle walks forward from v following the highest-remaining-flow arc
// until it returns to v. Only arcs with remaining flow are followed: if no
// such arc continues the walk, or the walk revisits a node other than v,
// it returns nil.
func traceCycle(g *dialoggraph.Graph, v int, remaining map[key]int, idx map[int]int) []int {
	visited := map[int]bool{v: true}
	cycle := []int{v}
	cur := v
	for i := 0; i < len(idx)+1; i++ {
		next, ok := bestResidualNeighbor(g, cur, remaining, idx)
		if !ok {
			return nil
		}
		if next == v {
			return cycle
		}
		if visited[next] {
			return nil
		}
		remaining[key{cur, next}]--
		visited[next] = true
		cycle = append(cycle, next)
		cur = next
	}
	return nil
}

func bestResidualNeighbor(g *dialoggraph.Graph, cur int, remaining map[key]int, idx map[int]int) (int, bool) {
	type cand struct {
		target int
		flow   int
	}
	var cands []cand
	for _, w := range g.Adj[cur] {
		if _, ok := idx[w]; !ok {
			continue
		}
		f := remaining[key{cur, w}]
		if f > 0 {
			cands = append(cands, cand{w, f})
		}
	}
	if len(cands) == 0 {
		return 0, false
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].flow != cands[j].flow {
			return cands[i].flow > cands[j].flow
		}
		return cands[i].target < cands[j].target
	})
	return cands[0].target, true
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func rotateTo(cycle []int, start int) []int {
	pos := indexOf(cycle, start)
	if pos <= 0 {
		return cycle
	}
	return append(append([]int{}, cycle[pos:]...), cycle[:pos]...)
}

// spliceAt inserts rotated (a cycle starting at t[pos] and closing back to
// it via a real edge from its last element) into t at position pos:
// prefix + cycle body + the common node again + suffix, so every
// consecutive pair in the result is a real edge.
func spliceAt(t []int, pos int, rotated []int) []int {
	out := make([]int, 0, len(t)+len(rotated)+1)
	out = append(out, t[:pos+1]...)
	if len(rotated) > 1 {
		out = append(out, rotated[1:]...)
		out = append(out, rotated[0])
	}
	out = append(out, t[pos+1:]...)
	return out
}

// bfsPathToAnyOf finds the shortest path from any node of from to any node
// in the target set, seeding all sources at distance 0 (multi-source BFS).
func bfsPathToAnyOf(g *dialoggraph.Graph, from []int, targets map[int]bool) []int {
	if len(from) == 0 {
		return nil
	}
	prev := make(map[int]int)
	visited := make(map[int]bool)
	queue := append([]int{}, from...)
	sort.Ints(queue)
	for _, f := range queue {
		visited[f] = true
		prev[f] = -1
	}
	target := -1
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if targets[cur] {
			target = cur
			break
		}
		for _, n := range g.Adj[cur] {
			if !visited[n] {
				visited[n] = true
				prev[n] = cur
				queue = append(queue, n)
			}
		}
	}
	if target == -1 {
		return nil
	}
	var path []int
	for cur := target; cur != -1; cur = prev[cur] {
		path = append([]int{cur}, path...)
	}
	return path
}

func bfsPathToAny(g *dialoggraph.Graph, from int, to []int) []int {
	toSet := make(map[int]bool, len(to))
	for _, t := range to {
		toSet[t] = true
	}
	prev := map[int]int{from: -1}
	visited := map[int]bool{from: true}
	queue := []int{from}
	var target = -1
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if toSet[cur] {
			target = cur
			break
		}
		neighbors := append([]int{}, g.Adj[cur]...)
		sort.Ints(neighbors)
		for _, n := range neighbors {
			if !visited[n] {
				visited[n] = true
				prev[n] = cur
				queue = append(queue, n)
			}
		}
	}
	if target == -1 {
		return nil
	}
	var path []int
	for cur := target; cur != -1; cur = prev[cur] {
		path = append([]int{cur}, path...)
	}
	return path
}
