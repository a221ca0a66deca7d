// Package artifact persists trained classifiers and opens them for serving.
//
// A forest artifact is a zstd-compressed, deterministically encoded CBOR
// envelope holding the label set, the feature names and the encoded forest,
// plus a BLAKE3 digest of the forest bytes. Files ending in .onnx are opened
// through ONNX Runtime instead (build tag onnx).
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"irisd/internal/common/fsutil"
	"irisd/internal/forest"
	"irisd/internal/predictor"
)

// Artifact formats.
const (
	FormatForest = "forest"
	FormatONNX   = "onnx"
)

const envelopeVersion = 1

// ErrCorrupt is wrapped by every error caused by artifact content rather than I/O.
var ErrCorrupt = errors.New("artifact corrupt")

type envelope struct {
	Format       string          `cbor:"1,keyasint"`
	Version      int             `cbor:"2,keyasint"`
	Labels       []string        `cbor:"3,keyasint"`
	FeatureNames []string        `cbor:"4,keyasint"`
	CreatedUnix  int64           `cbor:"5,keyasint"`
	Model        cbor.RawMessage `cbor:"6,keyasint"`
	Checksum     []byte          `cbor:"7,keyasint"`
}

// Model is an opened artifact. Classifier is read-only and shared by all requests.
type Model struct {
	Path         string
	Format       string
	Labels       []string
	FeatureNames []string
	CreatedAt    time.Time
	Classifier   predictor.Classifier

	closer func() error
}

// Close releases runtime resources held by the classifier.
func (m *Model) Close() error {
	if m == nil || m.closer == nil {
		return nil
	}
	return m.closer()
}

// Marshal encodes a forest artifact.
func Marshal(f *forest.Forest, labels, featureNames []string) ([]byte, error) {
	if f == nil || len(f.Trees) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(labels) != f.NumClasses {
		return nil, fmt.Errorf("got %d labels for %d classes", len(labels), f.NumClasses)
	}
	if len(featureNames) != 0 && len(featureNames) != f.NumFeatures {
		return nil, fmt.Errorf("got %d feature names for %d features", len(featureNames), f.NumFeatures)
	}
	body, err := encMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode forest: %w", err)
	}
	sum := blake3.Sum256(body)
	env := envelope{
		Format:       FormatForest,
		Version:      envelopeVersion,
		Labels:       labels,
		FeatureNames: featureNames,
		CreatedUnix:  time.Now().Unix(),
		Model:        body,
		Checksum:     sum[:],
	}
	raw, err := encMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// Unmarshal decodes and verifies a forest artifact.
func Unmarshal(data []byte) (*Model, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrCorrupt, err)
	}
	var env envelope
	if err := decMode.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrCorrupt, err)
	}
	if env.Format != FormatForest {
		return nil, fmt.Errorf("%w: unexpected format %q", ErrCorrupt, env.Format)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, env.Version)
	}
	sum := blake3.Sum256(env.Model)
	if !bytes.Equal(sum[:], env.Checksum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	var f forest.Forest
	if err := decMode.Unmarshal(env.Model, &f); err != nil {
		return nil, fmt.Errorf("%w: decode forest: %v", ErrCorrupt, err)
	}
	if len(f.Trees) == 0 || f.NumFeatures <= 0 {
		return nil, fmt.Errorf("%w: empty forest", ErrCorrupt)
	}
	if len(env.Labels) != f.NumClasses {
		return nil, fmt.Errorf("%w: %d labels for %d classes", ErrCorrupt, len(env.Labels), f.NumClasses)
	}
	return &Model{
		Format:       FormatForest,
		Labels:       env.Labels,
		FeatureNames: env.FeatureNames,
		CreatedAt:    time.Unix(env.CreatedUnix, 0),
		Classifier:   &f,
	}, nil
}

// Save writes a forest artifact to path, creating parent directories. The
// file is written to a temporary name and renamed into place.
func Save(path string, f *forest.Forest, labels, featureNames []string) error {
	data, err := Marshal(f, labels, featureNames)
	if err != nil {
		return err
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Open loads the artifact at path, choosing the runtime by extension.
func Open(path string) (*Model, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if !fsutil.PathExists(p) {
		return nil, predictor.ErrDependencyUnavailable("model artifact not found: %s", p)
	}
	if strings.EqualFold(filepath.Ext(p), "."+FormatONNX) {
		m, err := openONNX(p)
		if err != nil {
			return nil, err
		}
		m.Path = p
		return m, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	m, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	m.Path = p
	return m, nil
}
