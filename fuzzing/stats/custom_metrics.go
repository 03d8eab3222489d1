package stats

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

// MetricKind describes how a custom metric aggregates values.
type MetricKind string

const (
	// AccumulatorMetric sums every recorded value.
	AccumulatorMetric MetricKind = "accumulator"
	// HistogramMetric keeps every recorded value to summarize their distribution.
	HistogramMetric MetricKind = "histogram"
)

// CustomMetric is a test-defined statistic, such as the distribution of deposit amounts.
type CustomMetric struct {
	// Kind describes how values are aggregated.
	Kind MetricKind `json:"kind" cbor:"kind"`

	// Total is the running sum of an accumulator.
	Total float64 `json:"total,omitempty" cbor:"total,omitempty"`

	// Values are the recorded values of a histogram, sorted.
	Values []float64 `json:"values,omitempty" cbor:"values,omitempty"`
}

// HistogramSummary summarizes the values recorded in a histogram metric.
type HistogramSummary struct {
	Count   uint64  `json:"count"`
	Sum     float64 `json:"sum"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Avg     float64 `json:"avg"`
	Median  float64 `json:"median"`
	Entropy float64 `json:"entropy"`
}

// add records value in the metric.
func (m *CustomMetric) add(kind MetricKind, value float64) error {
	if m.Kind != kind {
		return errors.Errorf("cannot record a %s value in a %s metric", kind, m.Kind)
	}
	switch kind {
	case AccumulatorMetric:
		m.Total += value
	case HistogramMetric:
		i, _ := slices.BinarySearch(m.Values, value)
		m.Values = slices.Insert(m.Values, i, value)
	}
	return nil
}

// merge combines other into a copy of m.
func (m *CustomMetric) merge(other *CustomMetric) (*CustomMetric, error) {
	if m.Kind != other.Kind {
		return nil, errors.Errorf("cannot merge a %s metric into a %s metric", other.Kind, m.Kind)
	}
	merged := &CustomMetric{Kind: m.Kind, Total: m.Total + other.Total}
	if len(m.Values)+len(other.Values) > 0 {
		merged.Values = append(slices.Clone(m.Values), other.Values...)
		slices.Sort(merged.Values)
	}
	return merged, nil
}

// clone returns a deep copy of the metric.
func (m *CustomMetric) clone() *CustomMetric {
	return &CustomMetric{Kind: m.Kind, Total: m.Total, Values: slices.Clone(m.Values)}
}

// Summary summarizes a histogram's values. Entropy is the Shannon entropy, in bits, of the distribution of distinct
// values.
func (m *CustomMetric) Summary() HistogramSummary {
	n := len(m.Values)
	if n == 0 {
		return HistogramSummary{}
	}

	summary := HistogramSummary{
		Count: uint64(n),
		Min:   m.Values[0],
		Max:   m.Values[n-1],
	}
	for _, v := range m.Values {
		summary.Sum += v
	}
	summary.Avg = summary.Sum / float64(n)
	if n%2 == 0 {
		summary.Median = (m.Values[n/2-1] + m.Values[n/2]) / 2
	} else {
		summary.Median = m.Values[n/2]
	}

	// Values are sorted, so equal values are adjacent
	for start := 0; start < n; {
		end := start + 1
		for end < n && m.Values[end] == m.Values[start] {
			end++
		}
		p := float64(end-start) / float64(n)
		summary.Entropy -= p * math.Log2(p)
		start = end
	}
	return summary
}
