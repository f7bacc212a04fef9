package model

import "sort"

// treeNode is one node of a regression tree, stored in a flat array so the
// tree serializes deterministically. Feature == -1 marks a leaf.
type treeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// regressionTree is a depth-bounded CART tree fit on squared error.
type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

// predict walks the tree for one sample. Samples with value <= threshold go
// left, matching the split search below.
func (t *regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeParams bounds tree growth.
type treeParams struct {
	maxDepth       int
	minSamplesLeaf int
}

// treeBuilder grows one tree on the given targets (boosting residuals) and
// accumulates per-feature split gain into the shared importance vector.
type treeBuilder struct {
	x          [][]float64
	y          []float64
	params     treeParams
	gainByFeat []float64
}

func newTreeBuilder(x [][]float64, params treeParams, gainByFeat []float64) *treeBuilder {
	return &treeBuilder{x: x, params: params, gainByFeat: gainByFeat}
}

// build fits a tree to targets over the sample indices in idx.
func (b *treeBuilder) build(y []float64, idx []int) *regressionTree {
	b.y = y
	t := &regressionTree{}
	b.grow(t, idx, 0)
	return t
}

// grow appends the subtree for idx and returns its root node index.
func (b *treeBuilder) grow(t *regressionTree, idx []int, depth int) int {
	nodeIdx := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{Feature: -1, Value: mean(b.y, idx)})

	if depth >= b.params.maxDepth || len(idx) < 2*b.params.minSamplesLeaf {
		return nodeIdx
	}

	feat, thr, gain, ok := b.bestSplit(idx)
	if !ok {
		return nodeIdx
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.params.minSamplesLeaf || len(right) < b.params.minSamplesLeaf {
		return nodeIdx
	}

	b.gainByFeat[feat] += gain

	leftIdx := b.grow(t, left, depth+1)
	rightIdx := b.grow(t, right, depth+1)
	t.Nodes[nodeIdx].Feature = feat
	t.Nodes[nodeIdx].Threshold = thr
	t.Nodes[nodeIdx].Left = leftIdx
	t.Nodes[nodeIdx].Right = rightIdx
	return nodeIdx
}

// bestSplit finds the (feature, threshold) pair with the largest squared
// error reduction over the node's samples. Thresholds are midpoints between
// consecutive distinct feature values; ties resolve to the lowest feature
// index so tree construction is deterministic.
func (b *treeBuilder) bestSplit(idx []int) (feature int, threshold, gain float64, ok bool) {
	nodeSum, nodeSq := 0.0, 0.0
	for _, i := range idx {
		nodeSum += b.y[i]
		nodeSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	nodeSSE := nodeSq - nodeSum*nodeSum/n

	bestGain := 1e-12
	numFeatures := len(b.x[0])
	order := make([]int, len(idx))

	for f := 0; f < numFeatures; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })

		leftSum, leftSq := 0.0, 0.0
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			leftSum += b.y[i]
			leftSq += b.y[i] * b.y[i]

			cur, next := b.x[i][f], b.x[order[pos+1]][f]
			if cur == next {
				continue // can't split between equal values
			}
			nl := float64(pos + 1)
			nr := n - nl
			if int(nl) < b.params.minSamplesLeaf || int(nr) < b.params.minSamplesLeaf {
				continue
			}

			rightSum := nodeSum - leftSum
			rightSq := nodeSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			g := nodeSSE - sse
			if g > bestGain {
				bestGain = g
				feature = f
				threshold = cur + (next-cur)/2
				ok = true
			}
		}
	}
	return feature, threshold, bestGain, ok
}

func mean(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}
