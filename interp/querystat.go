package interp

import (
	"math"
	"sort"
)

// Statistics kernels for the entity query family. The count/sum/extrema/
// mode/quantile/generalized-mean kernels are exact. The conviction and
// divergence kernels are intentionally simplified surprisal estimates:
// the full generalized-distance statistics library is an external
// collaborator, and these approximations keep the opcodes well-typed and
// deterministic without reimplementing it.

func statSum(values []float64) float64 {
	s := 0.0
	for _, v := range values {
		s += v
	}
	return s
}

func statExtreme(values []float64, better func(a, b float64) bool) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	best := values[0]
	for _, v := range values[1:] {
		if better(v, best) {
			best = v
		}
	}
	return best, true
}

func statMode(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := values[0], 0
	for _, v := range values {
		if c := counts[v]; c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best, true
}

// statQuantile uses linear interpolation between closest ranks.
func statQuantile(values []float64, q float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0], true
	}
	if q >= 1 {
		return sorted[len(sorted)-1], true
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac, true
}

// statGeneralizedMean computes the power mean with exponent p; p == 0 is
// the geometric mean limit.
func statGeneralizedMean(values []float64, p float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	if p == 0 {
		logSum := 0.0
		for _, v := range values {
			logSum += math.Log(v)
		}
		return math.Exp(logSum / float64(len(values))), true
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Pow(v, p)
	}
	return math.Pow(sum/float64(len(values)), 1/p), true
}

// lpDistance is the Minkowski distance of order p between equal-length
// vectors; p <= 0 falls back to Euclidean.
func lpDistance(a, b []float64, p float64) float64 {
	if p <= 0 {
		p = 2
	}
	sum := 0.0
	for i := range a {
		sum += math.Pow(math.Abs(a[i]-b[i]), p)
	}
	return math.Pow(sum, 1/p)
}

// statSurprisals maps each value to -log p(value) under the empirical
// distribution of the sample. Simplified conviction basis.
func statSurprisals(values []float64) []float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	out := make([]float64, len(values))
	for i, v := range values {
		p := float64(counts[v]) / float64(len(values))
		out[i] = -math.Log(p)
	}
	return out
}

// statConvictions is mean surprisal over per-case surprisal; values that
// are common score above 1, outliers below. A zero surprisal (a value
// every case shares) maps to +Inf conviction, clamped to a large finite
// number so results stay representable.
func statConvictions(values []float64) []float64 {
	surprisals := statSurprisals(values)
	mean := statSum(surprisals) / float64(len(surprisals))
	out := make([]float64, len(surprisals))
	for i, s := range surprisals {
		switch {
		case s == 0 && mean == 0:
			out[i] = 1
		case s == 0:
			out[i] = math.MaxFloat64
		default:
			out[i] = mean / s
		}
	}
	return out
}

// statKLDivergences scores each case by the Kullback-Leibler divergence
// of the sample distribution with that case removed against the full
// sample distribution. Simplified: distributions are empirical over
// exact values.
func statKLDivergences(values []float64) []float64 {
	n := float64(len(values))
	full := make(map[float64]float64, len(values))
	for _, v := range values {
		full[v] += 1 / n
	}
	out := make([]float64, len(values))
	for i := range values {
		if n <= 1 {
			out[i] = 0
			continue
		}
		partial := make(map[float64]float64, len(full))
		for j, v := range values {
			if j == i {
				continue
			}
			partial[v] += 1 / (n - 1)
		}
		d := 0.0
		for v, q := range partial {
			d += q * math.Log(q/full[v])
		}
		out[i] = d
	}
	return out
}
