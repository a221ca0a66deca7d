package forest_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"irisd/internal/dataset"
	"irisd/internal/forest"
)

func trainIris(t *testing.T, cfg forest.Config) (*forest.Forest, *dataset.Dataset) {
	t.Helper()
	ds, err := dataset.Iris()
	require.NoError(t, err)
	f, err := forest.Train(ds.Features, ds.Targets, len(ds.Labels), cfg)
	require.NoError(t, err)
	return f, ds
}

func TestTrain_FitsIris(t *testing.T) {
	f, ds := trainIris(t, forest.Config{Trees: 25, Seed: 7})
	require.Len(t, f.Trees, 25)
	require.Equal(t, 4, f.Features())

	acc, err := f.Accuracy(ds.Features, ds.Targets)
	require.NoError(t, err)
	require.GreaterOrEqual(t, acc, 0.97, "training accuracy")
}

func TestPredict_KnownExemplars(t *testing.T) {
	f, _ := trainIris(t, forest.Config{Trees: 25, Seed: 1})

	c, err := f.Infer(mat.NewVecDense(4, []float64{5.1, 3.5, 1.4, 0.2}))
	require.NoError(t, err)
	require.Equal(t, 0, c, "setosa")

	c, err = f.Infer(mat.NewVecDense(4, []float64{6.7, 3.0, 5.2, 2.3}))
	require.NoError(t, err)
	require.Equal(t, 2, c, "virginica")
}

func TestTrain_DeterministicForSeed(t *testing.T) {
	a, ds := trainIris(t, forest.Config{Trees: 10, Seed: 42})
	b, _ := trainIris(t, forest.Config{Trees: 10, Seed: 42})
	require.Equal(t, a, b)
	for _, row := range ds.Features {
		pa, err := a.Proba(row)
		require.NoError(t, err)
		pb, err := b.Proba(row)
		require.NoError(t, err)
		require.Equal(t, pa, pb)
	}
}

func TestProba_SumsToOne(t *testing.T) {
	f, ds := trainIris(t, forest.Config{Trees: 5, Seed: 3, MaxDepth: 2})
	for _, row := range ds.Features[:20] {
		p, err := f.Proba(row)
		require.NoError(t, err)
		sum := 0.0
		for _, v := range p {
			sum += v
		}
		require.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestProba_WrongWidth(t *testing.T) {
	f, _ := trainIris(t, forest.Config{Trees: 2, Seed: 3})
	_, err := f.Proba([]float64{1, 2})
	require.Error(t, err)
}

func TestTrain_InputErrors(t *testing.T) {
	_, err := forest.Train(nil, nil, 3, forest.Config{})
	require.Error(t, err)
	_, err = forest.Train([][]float64{{1}}, []int{0, 1}, 3, forest.Config{})
	require.Error(t, err)
	_, err = forest.Train([][]float64{{1}, {1, 2}}, []int{0, 1}, 3, forest.Config{})
	require.Error(t, err)
	_, err = forest.Train([][]float64{{1}, {2}}, []int{0, 5}, 3, forest.Config{})
	require.Error(t, err)
	_, err = forest.Train([][]float64{{1}, {2}}, []int{0, 1}, 1, forest.Config{})
	require.Error(t, err)
}

func TestPredict_Untrained(t *testing.T) {
	var f forest.Forest
	_, err := f.Predict([]float64{1, 2, 3, 4})
	require.Error(t, err)
}

func TestTrain_SingleFeatureSeparable(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {10}, {11}, {12}}
	y := []int{0, 0, 0, 1, 1, 1}
	f, err := forest.Train(x, y, 2, forest.Config{Trees: 3, NoBootstrap: true})
	require.NoError(t, err)
	c, err := f.Predict([]float64{0.5})
	require.NoError(t, err)
	require.Equal(t, 0, c)
	c, err = f.Predict([]float64{11.5})
	require.NoError(t, err)
	require.Equal(t, 1, c)
	// Without bootstrap every tree splits at the same midpoint.
	require.Equal(t, 6.0, f.Trees[0].Nodes[0].Threshold)
}

func TestTrain_AdjacentFloatValues(t *testing.T) {
	a := math.Nextafter(1, 2)
	b := math.Nextafter(a, 2)
	f, err := forest.Train([][]float64{{a}, {b}}, []int{0, 1}, 2, forest.Config{Trees: 1, NoBootstrap: true})
	require.NoError(t, err)
	require.Equal(t, a, f.Trees[0].Nodes[0].Threshold)
	c, err := f.Predict([]float64{a})
	require.NoError(t, err)
	require.Equal(t, 0, c)
	c, err = f.Predict([]float64{b})
	require.NoError(t, err)
	require.Equal(t, 1, c)
}
