// Package dataset exposes the Iris measurements embedded in the binary.
package dataset

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

//go:embed iris.csv
var irisCSV string

// ClassNames is the fixed label order used for training and serving.
var ClassNames = []string{"setosa", "versicolor", "virginica"}

// Dataset is a labelled feature table.
type Dataset struct {
	FeatureNames []string
	Labels       []string
	Features     [][]float64
	Targets      []int
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Features) }

// Iris parses the embedded Iris table.
func Iris() (*Dataset, error) {
	return Parse(strings.NewReader(irisCSV), ClassNames)
}

// Parse reads a CSV table whose last column is a class name from labels and
// whose other columns are numeric. The first row is the header.
func Parse(r io.Reader, labels []string) (*Dataset, error) {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("header needs at least 2 columns, got %d", len(header))
	}
	nf := len(header) - 1
	ds := &Dataset{
		FeatureNames: append([]string(nil), header[:nf]...),
		Labels:       append([]string(nil), labels...),
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]float64, nf)
		for i := 0; i < nf; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, header[i], err)
			}
			row[i] = v
		}
		cls, ok := index[strings.TrimSpace(rec[nf])]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown class %q", line, rec[nf])
		}
		ds.Features = append(ds.Features, row)
		ds.Targets = append(ds.Targets, cls)
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("no samples")
	}
	return ds, nil
}
