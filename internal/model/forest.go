// Package model trains and persists the next-day direction classifier.
package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/stockshastri/shastri/internal/core"
	"golang.org/x/sync/errgroup"
)

// Params configures the random forest.
type Params struct {
	NTrees          int   `json:"n_trees" mapstructure:"n_trees"`
	MaxDepth        int   `json:"max_depth" mapstructure:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split" mapstructure:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf" mapstructure:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features" mapstructure:"max_features"` // 0 = sqrt(n_features)
	Seed            int64 `json:"seed" mapstructure:"seed"`
	Workers         int   `json:"-" mapstructure:"workers"`
}

// DefaultParams returns 200 trees of depth 10 seeded with 42.
func DefaultParams() Params {
	return Params{
		NTrees:          200,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
		Workers:         4,
	}
}

type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	// Prob is the class-1 share of the training samples at a leaf; -1 for split nodes.
	Prob float64 `json:"p"`
}

func (n node) leaf() bool { return n.Prob >= 0 }

// Tree is a binary CART tree stored as a flat node slice; index 0 is the root.
type Tree struct {
	Nodes []node `json:"nodes"`
}

func (t Tree) proba(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.leaf() {
			return n.Prob
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a trained random forest binary classifier.
type Forest struct {
	Params     Params    `json:"params"`
	NFeatures  int       `json:"n_features"`
	Trees      []Tree    `json:"trees"`
	Importance []float64 `json:"importance"`
}

// Train fits a forest on X with binary labels y. Each tree sees a bootstrap
// sample and considers a random feature subset at every split; tree i is
// seeded with Seed+i so results do not depend on scheduling.
func Train(ctx context.Context, X [][]float64, y []int, p Params) (*Forest, error) {
	if err := checkTrainingSet(X, y); err != nil {
		return nil, err
	}
	if p.NTrees <= 0 || p.MaxDepth <= 0 {
		return nil, core.WrapError(core.ErrTrainingFailed, fmt.Errorf("n_trees and max_depth must be positive"))
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}

	nf := len(X[0])
	mtry := p.MaxFeatures
	if mtry <= 0 || mtry > nf {
		mtry = int(math.Max(1, math.Floor(math.Sqrt(float64(nf)))))
	}

	f := &Forest{Params: p, NFeatures: nf, Trees: make([]Tree, p.NTrees)}
	treeImportance := make([][]float64, p.NTrees)

	g, gctx := errgroup.WithContext(ctx)
	if p.Workers > 0 {
		g.SetLimit(p.Workers)
	}
	for i := 0; i < p.NTrees; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &builder{
				X:        X,
				y:        y,
				p:        p,
				mtry:     mtry,
				rng:      rand.New(rand.NewSource(p.Seed + int64(i))),
				imp:      make([]float64, nf),
				nSamples: len(X),
			}
			b.grow(b.bootstrap(), 0)
			f.Trees[i] = Tree{Nodes: b.nodes}
			treeImportance[i] = normalize(b.imp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, core.WrapError(core.ErrTrainingFailed, err)
	}

	f.Importance = make([]float64, nf)
	for _, imp := range treeImportance {
		for j, v := range imp {
			f.Importance[j] += v
		}
	}
	f.Importance = normalize(f.Importance)
	return f, nil
}

func checkTrainingSet(X [][]float64, y []int) error {
	if len(X) == 0 {
		return core.WrapError(core.ErrTrainingFailed, fmt.Errorf("empty training set"))
	}
	if len(X) != len(y) {
		return core.WrapError(core.ErrTrainingFailed, fmt.Errorf("%d rows but %d labels", len(X), len(y)))
	}
	nf := len(X[0])
	if nf == 0 {
		return core.WrapError(core.ErrTrainingFailed, fmt.Errorf("no features"))
	}
	for i, x := range X {
		if len(x) != nf {
			return core.WrapError(core.ErrTrainingFailed, fmt.Errorf("row %d has %d features, want %d", i, len(x), nf))
		}
		if y[i] != 0 && y[i] != 1 {
			return core.WrapError(core.ErrTrainingFailed, fmt.Errorf("row %d has label %d", i, y[i]))
		}
	}
	return nil
}

// PredictProba returns the probabilities of class 0 and class 1.
func (f *Forest) PredictProba(x []float64) ([2]float64, error) {
	if len(x) != f.NFeatures {
		return [2]float64{}, core.WrapError(core.ErrStaleArtifact,
			fmt.Errorf("got %d features, model expects %d", len(x), f.NFeatures))
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.proba(x)
	}
	p1 := sum / float64(len(f.Trees))
	return [2]float64{1 - p1, p1}, nil
}

// Predict returns the most probable class; ties go to class 0.
func (f *Forest) Predict(x []float64) (int, error) {
	p, err := f.PredictProba(x)
	if err != nil {
		return 0, err
	}
	if p[1] > p[0] {
		return 1, nil
	}
	return 0, nil
}

// builder grows one tree.
type builder struct {
	X        [][]float64
	y        []int
	p        Params
	mtry     int
	rng      *rand.Rand
	nodes    []node
	imp      []float64
	nSamples int
}

func (b *builder) bootstrap() []int {
	idx := make([]int, b.nSamples)
	for i := range idx {
		idx[i] = b.rng.Intn(b.nSamples)
	}
	return idx
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

func (b *builder) grow(idx []int, depth int) int {
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}
	n := len(idx)
	self := len(b.nodes)
	b.nodes = append(b.nodes, node{Prob: float64(pos) / float64(n)})

	if depth >= b.p.MaxDepth || n < b.p.MinSamplesSplit || pos == 0 || pos == n {
		return self
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		return self
	}

	parent := gini(pos, n)
	b.imp[best.feature] += float64(n) / float64(b.nSamples) * (parent - best.impurity)

	var left, right []int
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r, Prob: -1}
	return self
}

// bestSplit scans a random subset of features for the split with the lowest
// weighted gini impurity. Features are drawn until mtry have been visited and
// at least one valid split is found.
func (b *builder) bestSplit(idx []int) (split, bool) {
	n := len(idx)
	best := split{impurity: math.Inf(1)}
	found := false

	order := make([]int, n)
	for visited, f := range b.rng.Perm(len(b.X[0])) {
		if visited >= b.mtry && found {
			break
		}
		copy(order, idx)
		sort.Slice(order, func(i, j int) bool { return b.X[order[i]][f] < b.X[order[j]][f] })

		total := 0
		for _, i := range order {
			total += b.y[i]
		}
		leftPos := 0
		for k := 0; k < n-1; k++ {
			leftPos += b.y[order[k]]
			lo, hi := b.X[order[k]][f], b.X[order[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < b.p.MinSamplesLeaf || nr < b.p.MinSamplesLeaf {
				continue
			}
			imp := (float64(nl)*gini(leftPos, nl) + float64(nr)*gini(total-leftPos, nr)) / float64(n)
			if imp < best.impurity {
				t := lo + (hi-lo)/2
				if t >= hi {
					t = lo
				}
				best = split{feature: f, threshold: t, impurity: imp}
				found = true
			}
		}
	}
	return best, found
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / sum
	}
	return out
}
