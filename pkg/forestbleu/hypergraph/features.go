package hypergraph

import (
	"sort"
	"strconv"
	"strings"
)

// FeatureVector is a sparse mapping from feature name to value. It doubles as
// the weight vector.
type FeatureVector map[string]float64

// Dot returns the inner product of f and weights.
func (f FeatureVector) Dot(weights FeatureVector) float64 {
	// iterate over the smaller map
	a, b := f, weights
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for name, v := range a {
		sum += v * b[name]
	}
	return sum
}

// Add accumulates other into f.
func (f FeatureVector) Add(other FeatureVector) {
	for name, v := range other {
		f[name] += v
	}
}

// Clone returns a copy of f. Clone of nil is an empty vector.
func (f FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(f))
	for name, v := range f {
		out[name] = v
	}
	return out
}

// String renders "name=value" pairs sorted by name.
func (f FeatureVector) String() string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + strconv.FormatFloat(f[name], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
