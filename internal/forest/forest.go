// Package forest implements a random-forest classifier: bagged CART trees
// with per-split feature subsampling and probability averaging.
package forest

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Config controls training. Zero values select defaults.
type Config struct {
	Trees           int    // number of trees (default 100)
	MaxDepth        int    // 0 = grow until leaves are pure
	MinSamplesSplit int    // default 2
	MaxFeatures     int    // features tried per split (default sqrt(n))
	Seed            uint64 // rng seed; the same seed yields the same forest
	NoBootstrap     bool   // train every tree on the full sample
}

func (c Config) withDefaults(nf int) Config {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MinSamplesSplit < 2 {
		c.MinSamplesSplit = 2
	}
	if c.MaxFeatures <= 0 || c.MaxFeatures > nf {
		c.MaxFeatures = defaultMaxFeatures(nf)
	}
	return c
}

// Forest is a trained ensemble. It is read-only after training and safe for
// concurrent use.
type Forest struct {
	NumFeatures int    `cbor:"1,keyasint" json:"num_features"`
	NumClasses  int    `cbor:"2,keyasint" json:"num_classes"`
	Trees       []Tree `cbor:"3,keyasint" json:"trees"`
}

// Train fits a forest on x (one row per sample) and class indices y in [0, numClasses).
func Train(x [][]float64, y []int, numClasses int, cfg Config) (*Forest, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, errors.New("features or labels empty")
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("features and labels size mismatch: %d != %d", len(x), len(y))
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}
	nf := len(x[0])
	if nf == 0 {
		return nil, errors.New("rows have no features")
	}
	for i, row := range x {
		if len(row) != nf {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), nf)
		}
		if y[i] < 0 || y[i] >= numClasses {
			return nil, fmt.Errorf("row %d: class %d out of range", i, y[i])
		}
	}
	cfg = cfg.withDefaults(nf)

	f := &Forest{NumFeatures: nf, NumClasses: numClasses, Trees: make([]Tree, cfg.Trees)}
	var wg sync.WaitGroup
	for t := 0; t < cfg.Trees; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(t)))
			b := &treeBuilder{
				x:           x,
				y:           y,
				numClasses:  numClasses,
				maxDepth:    cfg.MaxDepth,
				minSplit:    cfg.MinSamplesSplit,
				maxFeatures: cfg.MaxFeatures,
				rng:         rng,
			}
			f.Trees[t] = b.build(sample(rng, len(x), !cfg.NoBootstrap))
		}(t)
	}
	wg.Wait()
	return f, nil
}

func sample(rng *rand.Rand, n int, bootstrap bool) []int {
	out := make([]int, n)
	for i := range out {
		if bootstrap {
			out[i] = rng.IntN(n)
		} else {
			out[i] = i
		}
	}
	return out
}

// Proba returns the mean class distribution over all trees.
func (f *Forest) Proba(row []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(row) != f.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", f.NumFeatures, len(row))
	}
	out := make([]float64, f.NumClasses)
	for i := range f.Trees {
		p, err := f.Trees[i].proba(row)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		if len(p) != f.NumClasses {
			return nil, fmt.Errorf("tree %d: %w", i, errInvalidTree)
		}
		for c, v := range p {
			out[c] += v
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out, nil
}

// Predict returns the class with the highest mean probability. Ties resolve
// to the lowest class index.
func (f *Forest) Predict(row []float64) (int, error) {
	p, err := f.Proba(row)
	if err != nil {
		return 0, err
	}
	best := 0
	for c := 1; c < len(p); c++ {
		if p[c] > p[best] {
			best = c
		}
	}
	return best, nil
}

// Infer classifies a single feature vector.
func (f *Forest) Infer(v mat.Vector) (int, error) {
	return f.Predict(vectorRow(v))
}

// Scores returns the per-class probabilities for a single feature vector.
func (f *Forest) Scores(v mat.Vector) ([]float64, error) {
	return f.Proba(vectorRow(v))
}

// Features reports the expected input width.
func (f *Forest) Features() int { return f.NumFeatures }

// Accuracy is the fraction of rows in x predicted as y.
func (f *Forest) Accuracy(x [][]float64, y []int) (float64, error) {
	if len(x) == 0 || len(x) != len(y) {
		return 0, errors.New("features and labels size mismatch")
	}
	hits := 0
	for i, row := range x {
		c, err := f.Predict(row)
		if err != nil {
			return 0, err
		}
		if c == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(x)), nil
}

func vectorRow(v mat.Vector) []float64 {
	row := make([]float64, v.Len())
	for i := range row {
		row[i] = v.AtVec(i)
	}
	return row
}
