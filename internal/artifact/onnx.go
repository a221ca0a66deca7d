//go:build onnx

package artifact

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gonum.org/v1/gonum/mat"
)

// onnxClassifier runs a session whose tensors are bound at creation, so Run
// calls are serialized.
type onnxClassifier struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	width   int
}

func (c *onnxClassifier) Features() int { return c.width }

func (c *onnxClassifier) Scores(x mat.Vector) ([]float64, error) {
	if x.Len() != c.width {
		return nil, fmt.Errorf("expected %d features, got %d", c.width, x.Len())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	in := c.input.GetData()
	for i := range in {
		in[i] = float32(x.AtVec(i))
	}
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	out := c.output.GetData()
	scores := make([]float64, len(out))
	for i, v := range out {
		scores[i] = float64(v)
	}
	return scores, nil
}

func (c *onnxClassifier) Infer(x mat.Vector) (int, error) {
	scores, err := c.Scores(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best, nil
}

func (c *onnxClassifier) close() error {
	if c.input != nil {
		c.input.Destroy()
	}
	if c.output != nil {
		c.output.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	return ort.DestroyEnvironment()
}

func openONNX(path string) (*Model, error) {
	md, err := readONNXMetadata(path)
	if err != nil {
		return nil, err
	}
	if lib := os.Getenv("IRISD_ONNXRUNTIME_LIB"); lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx environment: %w", err)
	}
	c := &onnxClassifier{width: md.NumFeatures}
	c.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(md.NumFeatures)))
	if err != nil {
		c.close()
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	c.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(md.Labels))))
	if err != nil {
		c.close()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	c.session, err = ort.NewAdvancedSession(path,
		[]string{md.InputName}, []string{md.OutputName},
		[]ort.ArbitraryTensor{c.input}, []ort.ArbitraryTensor{c.output},
		nil)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &Model{
		Format:       FormatONNX,
		Labels:       md.Labels,
		FeatureNames: md.FeatureNames,
		Classifier:   c,
		closer:       c.close,
	}, nil
}
