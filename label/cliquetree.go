package label

import (
	"fmt"
	"sort"
)

// cliqueNode is one maximal clique of the triangulated dependency graph.
// startIndex/endIndex delimit the node's column block in the augmented
// matrix; single-member nodes reuse the member's own indicator block.
type cliqueNode struct {
	members    []int // sorted LF indices
	startIndex int
	endIndex   int
}

// cliqueEdge connects two cliques in the junction tree. members holds the
// separator set (the intersection of the two cliques).
type cliqueEdge struct {
	a, b       int // node indices
	members    []int
	startIndex int
	endIndex   int
}

// cliqueTree is a junction tree over the LF dependency graph, stored as an
// index arena rather than linked nodes. Nodes are ordered by their sorted
// member lists, so identical dependency inputs always produce an identical
// tree.
type cliqueTree struct {
	nodes []cliqueNode
	edges []cliqueEdge
}

// buildCliqueTree constructs the junction tree for m labeling functions and
// the given dependency edges. LFs with no declared dependencies become
// singleton cliques.
func buildCliqueTree(m int, deps [][2]int) (*cliqueTree, error) {
	adj := make([][]bool, m)
	for i := 0; i < m; i++ {
		adj[i] = make([]bool, m)
	}
	for _, e := range deps {
		i, j := e[0], e[1]
		if i < 0 || i >= m || j < 0 || j >= m {
			return nil, fmt.Errorf("%w: dependency edge (%d,%d) references an LF outside [0,%d)", ErrConfig, i, j, m)
		}
		if i == j {
			return nil, fmt.Errorf("%w: dependency edge (%d,%d) is a self-loop", ErrConfig, i, j)
		}
		adj[i][j] = true
		adj[j][i] = true
	}

	cliques := eliminationCliques(adj)
	cliques = maximalOnly(cliques)
	sort.Slice(cliques, func(a, b int) bool {
		return lessIntSlice(cliques[a], cliques[b])
	})

	tree := &cliqueTree{nodes: make([]cliqueNode, len(cliques))}
	for i, c := range cliques {
		tree.nodes[i] = cliqueNode{members: c}
	}
	tree.edges = spanCliques(tree.nodes)
	return tree, nil
}

// eliminationCliques triangulates the graph with a min-fill elimination
// ordering and returns the elimination clique of each vertex.
func eliminationCliques(adj [][]bool) [][]int {
	m := len(adj)
	filled := make([][]bool, m)
	for i := 0; i < m; i++ {
		filled[i] = append([]bool(nil), adj[i]...)
	}
	remaining := make([]bool, m)
	for i := 0; i < m; i++ {
		remaining[i] = true
	}

	var cliques [][]int
	for it := 0; it < m; it++ {
		v := pickMinFill(filled, remaining)

		neighbors := liveNeighbors(filled, remaining, v)
		clique := append([]int{v}, neighbors...)
		sort.Ints(clique)
		cliques = append(cliques, clique)

		// Fill in edges so the eliminated vertex's neighborhood is a clique.
		for a := range neighbors {
			for b := a + 1; b < len(neighbors); b++ {
				filled[neighbors[a]][neighbors[b]] = true
				filled[neighbors[b]][neighbors[a]] = true
			}
		}
		remaining[v] = false
	}
	return cliques
}

// pickMinFill returns the remaining vertex whose elimination adds the fewest
// fill edges, breaking ties by lowest index.
func pickMinFill(filled [][]bool, remaining []bool) int {
	best, bestFill := -1, -1
	for v := range remaining {
		if !remaining[v] {
			continue
		}
		neighbors := liveNeighbors(filled, remaining, v)
		fill := 0
		for a := range neighbors {
			for b := a + 1; b < len(neighbors); b++ {
				if !filled[neighbors[a]][neighbors[b]] {
					fill++
				}
			}
		}
		if best == -1 || fill < bestFill {
			best, bestFill = v, fill
		}
	}
	return best
}

func liveNeighbors(adj [][]bool, remaining []bool, v int) []int {
	var out []int
	for u := range adj[v] {
		if adj[v][u] && remaining[u] && u != v {
			out = append(out, u)
		}
	}
	return out
}

// maximalOnly removes cliques fully contained in another clique.
func maximalOnly(cliques [][]int) [][]int {
	var out [][]int
	for i, c := range cliques {
		contained := false
		for j, other := range cliques {
			if i == j || len(c) > len(other) {
				continue
			}
			if len(c) == len(other) && i < j {
				continue // keep the first of two identical cliques
			}
			if subsetOf(c, other) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, c)
		}
	}
	return out
}

func subsetOf(a, b []int) bool {
	for _, x := range a {
		if !containsInt(b, x) {
			return false
		}
	}
	return true
}

func containsInt(s []int, x int) bool {
	for _, v := range s {
		if v == x {
			return true
		}
	}
	return false
}

// spanCliques builds a maximum spanning tree over the clique overlap graph
// using Kruskal's algorithm with union-find. Cliques with no overlap stay
// disconnected, which is fine: the result is a forest of junction trees.
func spanCliques(nodes []cliqueNode) []cliqueEdge {
	type candidate struct {
		a, b    int
		overlap []int
	}
	var candidates []candidate
	for a := range nodes {
		for b := a + 1; b < len(nodes); b++ {
			overlap := intersect(nodes[a].members, nodes[b].members)
			if len(overlap) > 0 {
				candidates = append(candidates, candidate{a: a, b: b, overlap: overlap})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].overlap) > len(candidates[j].overlap)
	})

	parent := make([]int, len(nodes))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	var edges []cliqueEdge
	for _, c := range candidates {
		ra, rb := find(c.a), find(c.b)
		if ra == rb {
			continue
		}
		parent[ra] = rb
		edges = append(edges, cliqueEdge{a: c.a, b: c.b, members: c.overlap})
	}
	return edges
}

func intersect(a, b []int) []int {
	var out []int
	for _, x := range a {
		if containsInt(b, x) {
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}

func lessIntSlice(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// memberNodes returns, for each LF, the indices of the tree nodes whose
// clique contains it. Every LF belongs to at least one node.
func (t *cliqueTree) memberNodes(m int) [][]int {
	out := make([][]int, m)
	for idx, node := range t.nodes {
		for _, lf := range node.members {
			out[lf] = append(out[lf], idx)
		}
	}
	return out
}
