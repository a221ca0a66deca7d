package predictor

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Classifier is the capability the serving path needs from a loaded model:
// classify one feature vector into a class index.
type Classifier interface {
	Infer(x mat.Vector) (int, error)
	// Features is the expected vector length.
	Features() int
}

// Scorer is implemented by classifiers that can also report per-class scores.
type Scorer interface {
	Scores(x mat.Vector) ([]float64, error)
}

// Labels is an ordered, immutable class label set. Index i names class i.
type Labels struct {
	names []string
}

// NewLabels copies names into a label set. Names must be non-empty and unique.
func NewLabels(names ...string) (Labels, error) {
	if len(names) == 0 {
		return Labels{}, errors.New("label set is empty")
	}
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		if n == "" {
			return Labels{}, fmt.Errorf("label %d is empty", i)
		}
		if _, dup := seen[n]; dup {
			return Labels{}, fmt.Errorf("duplicate label %q", n)
		}
		seen[n] = struct{}{}
	}
	return Labels{names: append([]string(nil), names...)}, nil
}

// Len returns the number of classes.
func (l Labels) Len() int { return len(l.names) }

// Lookup returns the label for class index i.
func (l Labels) Lookup(i int) (string, bool) {
	if i < 0 || i >= len(l.names) {
		return "", false
	}
	return l.names[i], true
}

// Names returns a copy of the label names in index order.
func (l Labels) Names() []string { return append([]string(nil), l.names...) }

// Prediction is the outcome of one inference.
type Prediction struct {
	Index int
	Label string
	// Scores holds per-class scores when the classifier provides them.
	Scores []float64
}

// Predictor runs a Classifier and names its output.
type Predictor struct {
	clf    Classifier
	labels Labels
}

// New returns a Predictor for clf. A nil classifier is allowed; Predict then
// reports a dependency-unavailable error.
func New(clf Classifier, labels Labels) *Predictor {
	return &Predictor{clf: clf, labels: labels}
}

// Ready reports whether a classifier is attached.
func (p *Predictor) Ready() bool { return p != nil && p.clf != nil }

// Labels returns the predictor's label set.
func (p *Predictor) Labels() Labels { return p.labels }

// Predict classifies the first row of x. x is expected to be the (1,n)
// matrix produced by the feature decoder.
func (p *Predictor) Predict(x mat.Matrix) (pred Prediction, err error) {
	if !p.Ready() {
		return Prediction{}, ErrDependencyUnavailable("model not loaded")
	}
	r, c := x.Dims()
	if r != 1 || c != p.clf.Features() {
		return Prediction{}, inferenceError(fmt.Sprintf("input shape (%d,%d), model expects (1,%d)", r, c, p.clf.Features()), nil)
	}
	row := mat.Row(nil, 0, x)
	vec := mat.NewVecDense(len(row), row)

	defer func() {
		if rec := recover(); rec != nil {
			pred = Prediction{}
			err = inferenceError("classifier panic", fmt.Errorf("%v", rec))
		}
	}()

	idx, err := p.clf.Infer(vec)
	if err != nil {
		return Prediction{}, inferenceError("classifier error", err)
	}
	label, ok := p.labels.Lookup(idx)
	if !ok {
		return Prediction{}, inferenceError(fmt.Sprintf("class index %d outside label set of %d", idx, p.labels.Len()), nil)
	}
	pred = Prediction{Index: idx, Label: label}
	if s, ok := p.clf.(Scorer); ok {
		if scores, err := s.Scores(vec); err == nil {
			pred.Scores = scores
		}
	}
	return pred, nil
}
