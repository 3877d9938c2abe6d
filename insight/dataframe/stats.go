package dataframe

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary is the describe() view of one numeric column.
type Summary struct {
	Count    int
	Mean     float64
	Std      float64
	Min      float64
	Q1       float64
	Median   float64
	Q3       float64
	Max      float64
	Sum      float64
	Skew     float64
	Kurtosis float64 // excess kurtosis
}

// Describe summarises the non-null values of xs. Statistics that need more
// observations than are available are NaN.
func Describe(xs []float64) Summary {
	s := Summary{Count: len(xs)}
	nan := math.NaN()
	if len(xs) == 0 {
		return Summary{Mean: nan, Std: nan, Min: nan, Q1: nan, Median: nan, Q3: nan, Max: nan, Skew: nan, Kurtosis: nan}
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	s.Sum = floats.Sum(sorted)
	s.Mean = stat.Mean(sorted, nil)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Q1 = Quantile(sorted, 0.25)
	s.Median = Quantile(sorted, 0.5)
	s.Q3 = Quantile(sorted, 0.75)

	s.Std, s.Skew, s.Kurtosis = nan, nan, nan
	if len(sorted) > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	if len(sorted) > 2 && s.Std > 0 {
		s.Skew = stat.Skew(sorted, nil)
	}
	if len(sorted) > 3 && s.Std > 0 {
		s.Kurtosis = stat.ExKurtosis(sorted, nil)
	}
	return s
}

// Quantile interpolates linearly between closest ranks (h = (n-1)p) over
// sorted input, the convention spreadsheet and dataframe tools use.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// IQRFences returns the 1.5×IQR outlier fences.
func IQRFences(xs []float64) (lower, upper float64) {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	q1, q3 := Quantile(sorted, 0.25), Quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// Outliers returns the values outside the IQR fences, in input order.
func Outliers(xs []float64) (out []float64, lower, upper float64) {
	lower, upper = IQRFences(xs)
	for _, x := range xs {
		if x < lower || x > upper {
			out = append(out, x)
		}
	}
	return out, lower, upper
}

// SkewLabel classifies a skewness value.
func SkewLabel(skew float64) string {
	switch {
	case skew > 0.5:
		return "right-skewed"
	case skew < -0.5:
		return "left-skewed"
	default:
		return "approximately normal"
	}
}

// CorrelationMatrix computes pairwise Pearson correlation over rows where
// both columns are present.
func CorrelationMatrix(cols []*Column) [][]float64 {
	m := make([][]float64, len(cols))
	for i := range cols {
		m[i] = make([]float64, len(cols))
		for j := range cols {
			if i == j {
				m[i][j] = 1
				continue
			}
			if j < i {
				m[i][j] = m[j][i]
				continue
			}
			x, y := pairwise(cols[i], cols[j])
			if len(x) < 2 {
				m[i][j] = math.NaN()
				continue
			}
			m[i][j] = stat.Correlation(x, y, nil)
		}
	}
	return m
}

func pairwise(a, b *Column) (x, y []float64) {
	for i := range a.Values {
		fa, okA := a.Values[i].(float64)
		fb, okB := b.Values[i].(float64)
		if okA && okB {
			x = append(x, fa)
			y = append(y, fb)
		}
	}
	return x, y
}
