package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// onnxMetadata is the JSON sidecar stored next to an .onnx model
// (model.onnx -> model.json). The model must take a float32 tensor of shape
// (1, NumFeatures) and produce per-class scores of shape (1, len(Labels)).
type onnxMetadata struct {
	Labels       []string `json:"labels"`
	FeatureNames []string `json:"feature_names,omitempty"`
	NumFeatures  int      `json:"num_features"`
	InputName    string   `json:"input_name,omitempty"`
	OutputName   string   `json:"output_name,omitempty"`
}

func onnxMetadataPath(modelPath string) string {
	if ext := filepath.Ext(modelPath); strings.EqualFold(ext, "."+FormatONNX) {
		modelPath = strings.TrimSuffix(modelPath, ext)
	}
	return modelPath + ".json"
}

func readONNXMetadata(modelPath string) (onnxMetadata, error) {
	var md onnxMetadata
	b, err := os.ReadFile(onnxMetadataPath(modelPath))
	if err != nil {
		return md, fmt.Errorf("read onnx metadata: %w", err)
	}
	if err := json.Unmarshal(b, &md); err != nil {
		return md, fmt.Errorf("%w: parse onnx metadata: %v", ErrCorrupt, err)
	}
	if len(md.Labels) == 0 || md.NumFeatures <= 0 {
		return md, fmt.Errorf("%w: onnx metadata needs labels and num_features", ErrCorrupt)
	}
	if md.InputName == "" {
		md.InputName = "input"
	}
	if md.OutputName == "" {
		md.OutputName = "output"
	}
	return md, nil
}
