// Package window turns an hourly load series into training examples:
// sliding input windows [N, L, 1] and the value that follows each window.
package window

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

// ErrTooShort is returned when a series cannot fill a single window.
var ErrTooShort = errors.New("window: series too short")

// Series is a load series in time order.
type Series []float32

// LoadCSV reads one column of a CSV file with a header row.
//
// CSV Format:
//
//	timestamp,load
//	2024-01-01T00:00,10432.5
//	2024-01-01T01:00,10011.0
//
// column selects the value column by header name; an empty column selects
// the last one. Blank cells and non-finite values are rejected.
func LoadCSV(r io.Reader, column string) (Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := len(header) - 1
	if column != "" {
		col = -1
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), column) {
				col = i
				break
			}
		}
		if col < 0 {
			return nil, fmt.Errorf("column %q not found in header %v", column, header)
		}
	}

	var s Series
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if col >= len(record) {
			return nil, fmt.Errorf("row %d: missing column %d", row, col+1)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 32)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid value: %w", row, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("row %d: non-finite value %v", row, v)
		}
		s = append(s, float32(v))
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("CSV file has no data rows")
	}
	return s, nil
}

// LoadCSVFile opens path and reads it with LoadCSV.
func LoadCSVFile(path, column string) (Series, error) {
	//nolint:gosec // G304: the series path is user input by design
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	s, err := LoadCSV(file, column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Synthetic generates an hourly load curve of n points: a base load with
// daily and weekly cycles plus Gaussian noise drawn from key.
func Synthetic(n int, key rng.Key) Series {
	r := key.Rand()
	s := make(Series, n)
	for t := range s {
		h := float64(t)
		daily := 200 * math.Sin(2*math.Pi*h/24)
		weekly := 80 * math.Sin(2*math.Pi*h/168)
		s[t] = float32(1000 + daily + weekly + 20*r.NormFloat64())
	}
	return s
}

// Split cuts the series at (1 - validationRatio) of its length.
func (s Series) Split(validationRatio float64) (Series, Series) {
	at := int(float64(len(s)) * (1 - validationRatio))
	at = min(max(at, 0), len(s))
	return s[:at], s[at:]
}

// Scaler standardizes values to zero mean and unit variance.
type Scaler struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
}

// FitScaler computes the mean and standard deviation of s. A constant
// series gets Std 1.
func FitScaler(s Series) Scaler {
	xs := make([]float64, len(s))
	for i, v := range s {
		xs[i] = float64(v)
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 || std == 0 || math.IsNaN(std) {
		std = 1
	}
	return Scaler{Mean: mean, Std: std}
}

// Transform returns the standardized series.
func (sc Scaler) Transform(s Series) Series {
	out := make(Series, len(s))
	for i, v := range s {
		out[i] = float32((float64(v) - sc.Mean) / sc.Std)
	}
	return out
}

// Inverse maps standardized values back to the original units.
func (sc Scaler) Inverse(values []float32) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(float64(v)*sc.Std + sc.Mean)
	}
	return out
}

// Windows builds the examples for windows of length l: x[i] is
// s[i : i+l] shaped [l, 1] and y[i] is s[i+l+horizon-1].
//
// x is [N, l, 1] and y is [N] with N = len(s) - l - horizon + 1.
func Windows(s Series, l, horizon int) (x, y *tensor.RawTensor, err error) {
	if l <= 0 || horizon <= 0 {
		return nil, nil, fmt.Errorf("window: length %d and horizon %d must be positive", l, horizon)
	}
	n := len(s) - l - horizon + 1
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: %d points for window %d and horizon %d", ErrTooShort, len(s), l, horizon)
	}

	x = tensor.MustRaw(tensor.Shape{n, l, 1}, tensor.CPU)
	y = tensor.MustRaw(tensor.Shape{n}, tensor.CPU)
	xd, yd := x.AsFloat32(), y.AsFloat32()
	for i := range n {
		copy(xd[i*l:(i+1)*l], s[i:i+l])
		yd[i] = s[i+l+horizon-1]
	}
	return x, y, nil
}

// Last returns the final window of s as a [1, l, 1] input.
func Last(s Series, l int) (*tensor.RawTensor, error) {
	if l <= 0 || len(s) < l {
		return nil, fmt.Errorf("%w: %d points for window %d", ErrTooShort, len(s), l)
	}
	x := tensor.MustRaw(tensor.Shape{1, l, 1}, tensor.CPU)
	copy(x.AsFloat32(), s[len(s)-l:])
	return x, nil
}
