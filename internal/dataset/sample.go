package dataset

import (
	"bytes"
	_ "embed"
)

// SampleFileName is the file name the built-in sample registers under.
const SampleFileName = "sales.csv"

//go:embed sample/sales.csv
var sampleCSV []byte

// Sample parses the embedded sample dataset.
func Sample() (*Dataset, error) {
	return Parse(SampleFileName, bytes.NewReader(sampleCSV))
}
