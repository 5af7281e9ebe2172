package features

import (
	"math"
	"sort"
)

// Degenerate inputs return 0 throughout this file, never NaN.

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleVariance uses the n-1 denominator.
func SampleVariance(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss / float64(n-1)
}

func StdDev(xs []float64) float64 {
	return math.Sqrt(SampleVariance(xs))
}

// Covariance is the sample covariance of the common prefix of xs and ys.
func Covariance(xs, ys []float64) float64 {
	n := min(len(xs), len(ys))
	if n < 2 {
		return 0
	}
	mx, my := Mean(xs[:n]), Mean(ys[:n])
	s := 0.0
	for i := 0; i < n; i++ {
		s += (xs[i] - mx) * (ys[i] - my)
	}
	return s / float64(n-1)
}

// Beta is cov(xs, ys) / var(ys).
func Beta(xs, ys []float64) float64 {
	n := min(len(xs), len(ys))
	v := SampleVariance(ys[:n])
	if v == 0 {
		return 0
	}
	return Covariance(xs, ys) / v
}

// Pearson correlation coefficient.
func Pearson(xs, ys []float64) float64 {
	n := min(len(xs), len(ys))
	if n < 2 {
		return 0
	}
	sx, sy := StdDev(xs[:n]), StdDev(ys[:n])
	if sx == 0 || sy == 0 {
		return 0
	}
	r := Covariance(xs, ys) / (sx * sy)
	return Clamp(r, -1, 1)
}

// Percentile returns the element at index floor(p*n) of the ascending sort of xs.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted))))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// MeanAtOrBelow averages the values <= cutoff.
func MeanAtOrBelow(xs []float64, cutoff float64) float64 {
	sum, n := 0.0, 0
	for _, x := range xs {
		if x <= cutoff {
			sum += x
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// SafeDiv returns a/b, or 0 when b is zero or the result is not finite.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
