package forest

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
)

// Node is one entry of a flattened decision tree. Internal nodes route a
// sample left when row[Feature] <= Threshold; leaves carry the class
// distribution of the training samples that reached them.
type Node struct {
	Feature   int       `cbor:"1,keyasint" json:"feature"`
	Threshold float64   `cbor:"2,keyasint" json:"threshold"`
	Left      int       `cbor:"3,keyasint" json:"left"`
	Right     int       `cbor:"4,keyasint" json:"right"`
	Leaf      bool      `cbor:"5,keyasint" json:"leaf"`
	Value     []float64 `cbor:"6,keyasint" json:"value,omitempty"`
}

// Tree is a CART classifier stored as a node slice; index 0 is the root.
type Tree struct {
	Nodes []Node `cbor:"1,keyasint" json:"nodes"`
}

var errInvalidTree = errors.New("invalid tree state")

// proba walks the tree and returns the leaf distribution for row.
func (t *Tree) proba(row []float64) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, errors.New("tree not trained")
	}
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[idx]
		if n.Leaf {
			return n.Value, nil
		}
		if n.Feature < 0 || n.Feature >= len(row) {
			return nil, errors.New("feature index out of range")
		}
		if row[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
		if idx <= 0 || idx >= len(t.Nodes) {
			return nil, errInvalidTree
		}
	}
	return nil, errInvalidTree
}

// treeBuilder grows one tree over a bootstrap sample.
type treeBuilder struct {
	x           [][]float64
	y           []int
	numClasses  int
	maxDepth    int
	minSplit    int
	maxFeatures int
	rng         *rand.Rand
	nodes       []Node
}

func (b *treeBuilder) build(samples []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(samples, 0)
	return Tree{Nodes: append([]Node(nil), b.nodes...)}
}

// grow appends the subtree for samples and returns its root index.
func (b *treeBuilder) grow(samples []int, depth int) int {
	counts := b.classCounts(samples)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Left: -1, Right: -1})

	if isPure(counts) || len(samples) < b.minSplit || (b.maxDepth > 0 && depth >= b.maxDepth) {
		b.makeLeaf(idx, counts, len(samples))
		return idx
	}
	feature, threshold, ok := b.bestSplit(samples, counts)
	if !ok {
		b.makeLeaf(idx, counts, len(samples))
		return idx
	}
	var left, right []int
	for _, s := range samples {
		if b.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		b.makeLeaf(idx, counts, len(samples))
		return idx
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

func (b *treeBuilder) makeLeaf(idx int, counts []int, total int) {
	value := make([]float64, b.numClasses)
	if total == 0 {
		for c := range value {
			value[c] = 1 / float64(b.numClasses)
		}
		b.nodes[idx] = Node{Feature: -1, Left: -1, Right: -1, Leaf: true, Value: value}
		return
	}
	for c, n := range counts {
		value[c] = float64(n) / float64(total)
	}
	b.nodes[idx] = Node{Feature: -1, Left: -1, Right: -1, Leaf: true, Value: value}
}

func (b *treeBuilder) classCounts(samples []int) []int {
	counts := make([]int, b.numClasses)
	for _, s := range samples {
		counts[b.y[s]]++
	}
	return counts
}

// bestSplit searches a random subset of features for the threshold with the
// lowest weighted Gini impurity. Thresholds are midpoints between adjacent
// distinct values. When the subset yields no valid split the remaining
// features are tried as well.
func (b *treeBuilder) bestSplit(samples []int, parent []int) (int, float64, bool) {
	perm := b.rng.Perm(len(b.x[0]))
	f, t, ok := b.searchSplit(samples, parent, perm[:b.maxFeatures])
	if !ok && b.maxFeatures < len(perm) {
		f, t, ok = b.searchSplit(samples, parent, perm[b.maxFeatures:])
	}
	return f, t, ok
}

func (b *treeBuilder) searchSplit(samples []int, parent []int, features []int) (int, float64, bool) {
	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := gini(parent, len(samples))
	order := append([]int(nil), samples...)
	left := make([]int, b.numClasses)
	right := make([]int, b.numClasses)
	for _, f := range features {
		sort.SliceStable(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })
		for c := range left {
			left[c] = 0
		}
		copy(right, parent)
		for i := 0; i < len(order)-1; i++ {
			cls := b.y[order[i]]
			left[cls]++
			right[cls]--
			lo, hi := b.x[order[i]][f], b.x[order[i+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := i+1, len(order)-i-1
			impurity := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(len(order))
			if impurity < bestImpurity-1e-12 {
				bestImpurity = impurity
				bestFeature = f
				// The midpoint of adjacent floats rounds to hi, which would
				// send every sample left.
				t := lo + (hi-lo)/2
				if t >= hi {
					t = lo
				}
				bestThreshold = t
			}
		}
	}
	if bestFeature < 0 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, n := range counts {
		p := float64(n) / float64(total)
		impurity -= p * p
	}
	return impurity
}

func isPure(counts []int) bool {
	seen := 0
	for _, n := range counts {
		if n > 0 {
			seen++
		}
	}
	return seen <= 1
}

// defaultMaxFeatures mirrors the usual sqrt(n_features) rule for classification forests.
func defaultMaxFeatures(nf int) int {
	m := int(math.Sqrt(float64(nf)))
	if m < 1 {
		m = 1
	}
	return m
}
