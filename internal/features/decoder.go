// Package features turns a JSON request body into the numeric matrix the
// model consumes.
package features

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Field is the request key holding the feature vector.
const Field = "features"

// Width is the number of measurements in an Iris sample.
const Width = 4

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StatusCode maps validation failures to 400.
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// Decoder validates request bodies against a fixed vector width.
type Decoder struct {
	width int
}

// NewDecoder returns a Decoder expecting width numeric entries. A
// non-positive width selects Width.
func NewDecoder(width int) Decoder {
	if width <= 0 {
		width = Width
	}
	return Decoder{width: width}
}

// Width reports the number of entries the decoder requires.
func (d Decoder) Width() int { return d.width }

// Decode reads one JSON object from r and returns the (1,width) matrix built
// from its features array.
func (d Decoder) Decode(r io.Reader) (*mat.Dense, error) {
	dec := json.NewDecoder(r)
	var body map[string]json.RawMessage
	if err := dec.Decode(&body); err != nil {
		return nil, &ValidationError{Reason: "invalid JSON body", Err: err}
	}
	if body == nil {
		return nil, &ValidationError{Reason: "body must be a JSON object"}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, &ValidationError{Reason: "unexpected data after JSON object", Err: err}
	}
	raw, ok := body[Field]
	if !ok {
		return nil, &ValidationError{Field: Field, Reason: "is required"}
	}
	return d.DecodeValues(raw)
}

// DecodeBytes is Decode over an in-memory body.
func (d Decoder) DecodeBytes(b []byte) (*mat.Dense, error) {
	return d.Decode(bytes.NewReader(b))
}

// DecodeValues validates the raw JSON value of the features field.
func (d Decoder) DecodeValues(raw json.RawMessage) (*mat.Dense, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ValidationError{Field: Field, Reason: "must be an array of numbers"}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, &ValidationError{Field: Field, Reason: "must be an array of numbers", Err: err}
	}
	if len(items) != d.width {
		return nil, &ValidationError{Field: Field, Reason: fmt.Sprintf("must contain exactly %d values, got %d", d.width, len(items))}
	}
	vals := make([]float64, d.width)
	for i, item := range items {
		v, err := parseNumber(item)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("%s[%d]", Field, i), Reason: err.Error()}
		}
		vals[i] = v
	}
	return mat.NewDense(1, d.width, vals), nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 {
		return 0, errors.New("must be a number")
	}
	// JSON numbers start with '-' or a digit; anything else is a string,
	// boolean, null, array or object.
	if c := s[0]; c != '-' && (c < '0' || c > '9') {
		return 0, errors.New("must be a number")
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("must be a finite number")
	}
	return v, nil
}
