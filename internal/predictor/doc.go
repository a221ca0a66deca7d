// Package predictor maps a decoded feature matrix to a class label.
//
// The loaded model is reached only through the Classifier capability, so the
// runtime behind it (the in-process forest or ONNX Runtime) can change without
// touching the HTTP layer or the feature decoder. The label set is an
// immutable value handed to New; nothing in this package holds global state.
package predictor
