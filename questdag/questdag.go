// Package questdag turns each quest's suggested-next list into a directed
// graph, optionally removing cycles deterministically component by
// component, and populates NextQuests/PrevQuests from the surviving edges.
package questdag

import (
	"log/slog"
	"sort"

	"github.com/kqwyf/dialogtrace/model"
)

// Build wires quest edges from SuggestedNext. When removeCycles is false it
// populates both directions straight from the suggested-next lists. When
// true (the default) it first breaks every directed cycle so the result is
// a DAG.
func Build(db *model.Database, removeCycles bool, log *slog.Logger) {
	edges := collectEdges(db)
	if removeCycles {
		edges = removeDirectedCycles(edges, log)
	}
	populate(db, edges)
}

type edge struct{ from, to int }

func collectEdges(db *model.Database) map[edge]bool {
	edges := make(map[edge]bool)
	for _, id := range db.SortedQuestIDs() {
		q := db.Quests[id]
		for _, next := range q.SuggestedNext {
			edges[edge{id, next}] = true
		}
	}
	return edges
}

func populate(db *model.Database, edges map[edge]bool) {
	for _, id := range db.SortedQuestIDs() {
		q := db.Quests[id]
		q.NextQuests = nil
		q.PrevQuests = nil
	}
	ordered := make([]edge, 0, len(edges))
	for e := range edges {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].from != ordered[j].from {
			return ordered[i].from < ordered[j].from
		}
		return ordered[i].to < ordered[j].to
	})
	for _, e := range ordered {
		if from, ok := db.Quests[e.from]; ok {
			from.NextQuests = append(from.NextQuests, e.to)
		}
		if to, ok := db.Quests[e.to]; ok {
			to.PrevQuests = append(to.PrevQuests, e.from)
		}
	}
}

// removeDirectedCycles processes one weakly connected component of the
// edge set at a time, repeatedly removing a single in-edge of a
// deterministically chosen victim until the component is acyclic.
func removeDirectedCycles(edges map[edge]bool, log *slog.Logger) map[edge]bool {
	components := weakComponents(edges)
	result := make(map[edge]bool)

	for _, comp := range components {
		compEdges := make(map[edge]bool)
		for e := range edges {
			if comp[e.from] && comp[e.to] {
				compEdges[e] = true
			}
		}
		compEdges = breakCycles(compEdges, log)
		for e := range compEdges {
			result[e] = true
		}
	}
	return result
}

func weakComponents(edges map[edge]bool) []map[int]bool {
	adj := make(map[int]map[int]bool)
	addNode := func(n int) {
		if adj[n] == nil {
			adj[n] = make(map[int]bool)
		}
	}
	for e := range edges {
		addNode(e.from)
		addNode(e.to)
		adj[e.from][e.to] = true
		adj[e.to][e.from] = true
	}

	nodes := make([]int, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)

	visited := make(map[int]bool)
	var components []map[int]bool
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		comp := make(map[int]bool)
		queue := []int{start}
		visited[start] = true
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			comp[n] = true
			neighbors := make([]int, 0, len(adj[n]))
			for m := range adj[n] {
				neighbors = append(neighbors, m)
			}
			sort.Ints(neighbors)
			for _, m := range neighbors {
				if !visited[m] {
					visited[m] = true
					queue = append(queue, m)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

// breakCycles removes in-edges of deterministically-chosen victims until
// compEdges is acyclic.
func breakCycles(compEdges map[edge]bool, log *slog.Logger) map[edge]bool {
	for {
		cycles := enumerateSimpleCycles(compEdges)
		if len(cycles) == 0 {
			return compEdges
		}
		canon := make([][]int, len(cycles))
		for i, c := range cycles {
			canon[i] = canonicalizeCycle(c)
		}
		sort.Slice(canon, func(i, j int) bool { return lessLex(canon[i], canon[j]) })
		victim := canon[0][0]

		inCycle := make(map[int]bool)
		for _, c := range canon[0] {
			inCycle[c] = true
		}

		bestIn, found := -1, false
		for e := range compEdges {
			if e.to != victim {
				continue
			}
			if !found {
				bestIn, found = e.from, true
				continue
			}
			candIsOutside := !inCycle[e.from]
			bestIsOutside := !inCycle[bestIn]
			switch {
			case candIsOutside && !bestIsOutside:
				bestIn = e.from
			case candIsOutside == bestIsOutside && e.from > bestIn:
				bestIn = e.from
			}
		}
		if !found {
			// Shouldn't happen if victim is truly on a cycle.
			return compEdges
		}
		delete(compEdges, edge{bestIn, victim})
		log.Debug("questdag: removed cycle edge", "from", bestIn, "to", victim)
	}
}

func lessLex(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// canonicalizeCycle rotates c so its minimum-id node is first.
func canonicalizeCycle(c []int) []int {
	minIdx := 0
	for i, v := range c {
		if v < c[minIdx] {
			minIdx = i
		}
	}
	out := make([]int, len(c))
	for i := range c {
		out[i] = c[(minIdx+i)%len(c)]
	}
	return out
}

// enumerateSimpleCycles finds all simple directed cycles in compEdges via
// DFS bounded by the component's own size; quest graphs stay small enough
// for exhaustive enumeration.
func enumerateSimpleCycles(compEdges map[edge]bool) [][]int {
	adj := make(map[int][]int)
	nodeSet := make(map[int]bool)
	for e := range compEdges {
		adj[e.from] = append(adj[e.from], e.to)
		nodeSet[e.from] = true
		nodeSet[e.to] = true
	}
	for n := range adj {
		sort.Ints(adj[n])
	}
	nodes := make([]int, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)

	var cycles [][]int
	seen := make(map[string]bool)

	var dfs func(start int, path []int, onPath map[int]int)
	dfs = func(start int, path []int, onPath map[int]int) {
		cur := path[len(path)-1]
		for _, next := range adj[cur] {
			if next == start {
				cycle := append([]int{}, path...)
				key := cycleKey(canonicalizeCycle(cycle))
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
				continue
			}
			if next < start {
				continue // cycles through smaller nodes are found starting there
			}
			if _, already := onPath[next]; already {
				continue
			}
			onPath[next] = len(path)
			dfs(start, append(path, next), onPath)
			delete(onPath, next)
		}
	}

	for _, start := range nodes {
		onPath := map[int]int{start: 0}
		dfs(start, []int{start}, onPath)
	}
	return cycles
}

func cycleKey(c []int) string {
	key := make([]byte, 0, len(c)*8)
	for _, v := range c {
		key = append(key, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), ',')
	}
	return string(key)
}
