//go:build !onnx

package artifact

import "irisd/internal/predictor"

func openONNX(path string) (*Model, error) {
	return nil, predictor.ErrDependencyUnavailable("onnx runtime support not compiled in (build with -tags onnx): %s", path)
}
