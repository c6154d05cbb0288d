package label

import (
	"fmt"

	"github.com/HazyResearch/ddlite/internal/sparse"
)

// layoutBlocks assigns augmented-matrix column blocks. The first m*k columns
// are per-LF indicators: column j*k+c is set when LF j votes class c+1.
// After those, every junction tree node and separator with two or more
// members gets a block of k^|members| columns, one per joint vote
// assignment. Blocks follow tree node order, then tree edge order, so the
// layout depends only on (k, deps) and is stable across calls.
func (lm *Model) layoutBlocks() {
	d := lm.m * lm.k

	memberNodes := lm.tree.memberNodes(lm.m)
	lm.cData = make([]blockInfo, 0, lm.m+len(lm.tree.nodes)+len(lm.tree.edges))
	for j := 0; j < lm.m; j++ {
		lm.cData = append(lm.cData, blockInfo{
			start: j * lm.k,
			end:   (j + 1) * lm.k,
			nodes: memberNodes[j],
		})
	}

	for idx := range lm.tree.nodes {
		node := &lm.tree.nodes[idx]
		if len(node.members) == 1 {
			node.startIndex = node.members[0] * lm.k
			node.endIndex = node.startIndex + lm.k
			continue
		}
		node.startIndex = d
		node.endIndex = d + intPow(lm.k, len(node.members))
		d = node.endIndex
		lm.cData = append(lm.cData, blockInfo{start: node.startIndex, end: node.endIndex, nodes: []int{idx}})
	}
	for idx := range lm.tree.edges {
		edge := &lm.tree.edges[idx]
		if len(edge.members) == 1 {
			edge.startIndex = edge.members[0] * lm.k
			edge.endIndex = edge.startIndex + lm.k
			continue
		}
		edge.startIndex = d
		edge.endIndex = d + intPow(lm.k, len(edge.members))
		d = edge.endIndex
		lm.cData = append(lm.cData, blockInfo{start: edge.startIndex, end: edge.endIndex, nodes: []int{edge.a, edge.b}})
	}
	lm.d = d
}

// augmentRows expands L into sparse augmented indicator rows. An abstain
// contributes no indicator; a joint block column is set only when every
// clique member votes. The joint column offset is the mixed-radix encoding
// of the member votes, lowest LF index as the most significant digit.
func (lm *Model) augmentRows(L [][]int) []sparse.BinaryRow {
	rows := make([]sparse.BinaryRow, len(L))
	for i, votes := range L {
		row := sparse.NewBinaryRow(lm.d)
		for j, v := range votes {
			if v > 0 {
				row.Set(j*lm.k + v - 1)
			}
		}
		for _, node := range lm.tree.nodes {
			lm.setJointColumn(&row, votes, node.members, node.startIndex)
		}
		for _, edge := range lm.tree.edges {
			lm.setJointColumn(&row, votes, edge.members, edge.startIndex)
		}
		rows[i] = row
	}
	return rows
}

func (lm *Model) setJointColumn(row *sparse.BinaryRow, votes, members []int, start int) {
	if len(members) < 2 {
		return
	}
	offset := 0
	for _, lf := range members {
		if votes[lf] == 0 {
			return
		}
		offset = offset*lm.k + votes[lf] - 1
	}
	row.Set(start + offset)
}

// augmentMatrix builds and stores the augmented matrix for training.
// Must follow setDependencies.
func (lm *Model) augmentMatrix(L [][]int) error {
	if lm.stage < stageDependencies {
		return fmt.Errorf("%w: augmentation before dependencies", ErrState)
	}
	lm.aug = lm.augmentRows(L)
	lm.stage = stageAugmented
	return nil
}

func intPow(base, exp int) int {
	out := 1
	for it := 0; it < exp; it++ {
		out *= base
	}
	return out
}
