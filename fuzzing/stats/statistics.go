package stats

import (
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Category names the buckets findings and failures are recorded in. They are the top-level keys of the persisted
// statistics document.
type Category string

const (
	// CategoryErrors holds failed transactions keyed by error kind.
	CategoryErrors Category = "errors"
	// CategoryCustomErrors holds failed transactions keyed by custom program error code.
	CategoryCustomErrors Category = "custom_errors"
	// CategoryInvariants holds invariant violations keyed by invariant name.
	CategoryInvariants Category = "invariants"
	// CategoryPanics holds programs which failed to complete, keyed by panic message.
	CategoryPanics Category = "panics"
)

// Categories returns every category in report order.
func Categories() []Category {
	return []Category{CategoryErrors, CategoryCustomErrors, CategoryInvariants, CategoryPanics}
}

// TransactionStats counts the outcomes of one transaction variant.
type TransactionStats struct {
	Invoked         uint64 `json:"invoked" cbor:"invoked"`
	Successful      uint64 `json:"successful" cbor:"successful"`
	Failed          uint64 `json:"failed" cbor:"failed"`
	Panicked        uint64 `json:"panicked" cbor:"panicked"`
	InvariantFailed uint64 `json:"invariant_failed" cbor:"invariant_failed"`
}

// add returns the sum of two sets of counters.
func (t TransactionStats) add(other TransactionStats) TransactionStats {
	return TransactionStats{
		Invoked:         t.Invoked + other.Invoked,
		Successful:      t.Successful + other.Successful,
		Failed:          t.Failed + other.Failed,
		Panicked:        t.Panicked + other.Panicked,
		InvariantFailed: t.InvariantFailed + other.InvariantFailed,
	}
}

// Statistics aggregates everything recorded by a worker, or the merge of several workers. A Statistics value is
// owned by a single goroutine. Workers hand the reporter clones at synchronization points.
type Statistics struct {
	// Iterations is the number of completed iterations.
	Iterations uint64 `json:"iterations" cbor:"iterations"`

	// Findings is the number of findings recorded.
	Findings uint64 `json:"findings" cbor:"findings"`

	// Transactions maps transaction names to their outcome counters.
	Transactions map[string]TransactionStats `json:"transactions" cbor:"transactions"`

	// Buckets maps each category to its bucket.
	Buckets map[Category]Bucket `json:"buckets" cbor:"buckets"`

	// Metrics maps custom metric names to their values.
	Metrics map[string]*CustomMetric `json:"metrics,omitempty" cbor:"metrics,omitempty"`

	// Regression records account data hashes per iteration seed.
	Regression *RegressionMonitor `json:"regression,omitempty" cbor:"regression,omitempty"`
}

// NewStatistics creates empty Statistics with a bucket for every category.
func NewStatistics() *Statistics {
	s := &Statistics{
		Transactions: make(map[string]TransactionStats),
		Buckets:      make(map[Category]Bucket),
		Metrics:      make(map[string]*CustomMetric),
		Regression:   NewRegressionMonitor(),
	}
	for _, category := range Categories() {
		s.Buckets[category] = NewBucket()
	}
	return s
}

// Bucket returns the bucket for category, creating it if needed.
func (s *Statistics) Bucket(category Category) Bucket {
	bucket, ok := s.Buckets[category]
	if !ok {
		bucket = NewBucket()
		s.Buckets[category] = bucket
	}
	return bucket
}

// Record adds one occurrence of key to category's bucket.
func (s *Statistics) Record(category Category, key string, seedHex string, logs []string) {
	s.Bucket(category).Record(key, seedHex, logs)
}

// updateTransaction applies f to the counters of the named transaction.
func (s *Statistics) updateTransaction(name string, f func(*TransactionStats)) {
	t := s.Transactions[name]
	f(&t)
	s.Transactions[name] = t
}

// IncreaseInvoked counts an attempt of the named transaction.
func (s *Statistics) IncreaseInvoked(name string) {
	s.updateTransaction(name, func(t *TransactionStats) { t.Invoked++ })
}

// IncreaseSuccessful counts a successful execution of the named transaction.
func (s *Statistics) IncreaseSuccessful(name string) {
	s.updateTransaction(name, func(t *TransactionStats) { t.Successful++ })
}

// IncreaseFailed counts a failed execution of the named transaction.
func (s *Statistics) IncreaseFailed(name string) {
	s.updateTransaction(name, func(t *TransactionStats) { t.Failed++ })
}

// IncreasePanicked counts an execution of the named transaction in which a program failed to complete.
func (s *Statistics) IncreasePanicked(name string) {
	s.updateTransaction(name, func(t *TransactionStats) { t.Panicked++ })
}

// IncreaseInvariantFailed counts an invariant violation of the named transaction.
func (s *Statistics) IncreaseInvariantFailed(name string) {
	s.updateTransaction(name, func(t *TransactionStats) { t.InvariantFailed++ })
}

// metric returns the named metric, creating it with kind if needed.
func (s *Statistics) metric(name string, kind MetricKind) *CustomMetric {
	m, ok := s.Metrics[name]
	if !ok {
		m = &CustomMetric{Kind: kind}
		s.Metrics[name] = m
	}
	return m
}

// AddToAccumulator adds value to the named accumulator metric.
func (s *Statistics) AddToAccumulator(name string, value float64) error {
	return errors.Wrapf(s.metric(name, AccumulatorMetric).add(AccumulatorMetric, value), "metric %s", name)
}

// AddToHistogram records value in the named histogram metric.
func (s *Statistics) AddToHistogram(name string, value float64) error {
	return errors.Wrapf(s.metric(name, HistogramMetric).add(HistogramMetric, value), "metric %s", name)
}

// MergeFrom merges other into s in place.
func (s *Statistics) MergeFrom(other *Statistics) error {
	if other == nil {
		return nil
	}
	s.Iterations += other.Iterations
	s.Findings += other.Findings
	for name, t := range other.Transactions {
		s.Transactions[name] = s.Transactions[name].add(t)
	}
	for category, bucket := range other.Buckets {
		s.Bucket(category).MergeFrom(bucket)
	}
	for name, m := range other.Metrics {
		existing, ok := s.Metrics[name]
		if !ok {
			s.Metrics[name] = m.clone()
			continue
		}
		merged, err := existing.merge(m)
		if err != nil {
			return errors.Wrapf(err, "metric %s", name)
		}
		s.Metrics[name] = merged
	}
	if s.Regression == nil {
		s.Regression = NewRegressionMonitor()
	}
	s.Regression.MergeFrom(other.Regression)
	return nil
}

// Merge returns the merge of s and other, leaving both unchanged.
func (s *Statistics) Merge(other *Statistics) (*Statistics, error) {
	merged := s.Clone()
	if err := merged.MergeFrom(other); err != nil {
		return nil, err
	}
	return merged, nil
}

// Clone returns a deep copy of the statistics.
func (s *Statistics) Clone() *Statistics {
	clone := s.cloneWithoutRegression()
	clone.Regression = NewRegressionMonitor()
	clone.Regression.MergeFrom(s.Regression)
	return clone
}

// cloneWithoutRegression returns a deep copy of the statistics with a nil Regression.
func (s *Statistics) cloneWithoutRegression() *Statistics {
	clone := &Statistics{
		Iterations:   s.Iterations,
		Findings:     s.Findings,
		Transactions: maps.Clone(s.Transactions),
		Buckets:      make(map[Category]Bucket, len(s.Buckets)),
		Metrics:      make(map[string]*CustomMetric, len(s.Metrics)),
	}
	if clone.Transactions == nil {
		clone.Transactions = make(map[string]TransactionStats)
	}
	for category, bucket := range s.Buckets {
		clone.Buckets[category] = bucket.Clone()
	}
	for name, m := range s.Metrics {
		clone.Metrics[name] = m.clone()
	}
	return clone
}

// TransactionNames returns the names of every recorded transaction, sorted.
func (s *Statistics) TransactionNames() []string {
	names := make([]string, 0, len(s.Transactions))
	for name := range s.Transactions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Reset clears the statistics so the value can be reused as a fresh delta.
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
