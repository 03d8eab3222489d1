package stats

import (
	"encoding/json"
	"io"

	"github.com/crytic/svmfuzz/utils"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Report is the statistics document written at the end of a campaign.
type Report struct {
	// CampaignID identifies the campaign the report was produced by.
	CampaignID string `json:"campaign_id"`

	// MasterSeed is the hex-encoded master seed of the campaign.
	MasterSeed string `json:"master_seed"`

	// Iterations is the number of completed iterations.
	Iterations uint64 `json:"iterations"`

	// Findings is the number of findings recorded.
	Findings uint64 `json:"findings"`

	// Buckets holds the recorded occurrences, as {category: {key: {occurrences, seed_hex, logs}}}.
	Buckets map[Category]Bucket `json:"buckets"`

	// Transactions maps transaction names to their outcome counters.
	Transactions map[string]TransactionStats `json:"transactions"`

	// Accumulators maps accumulator metric names to their totals.
	Accumulators map[string]float64 `json:"accumulators,omitempty"`

	// Histograms maps histogram metric names to their summaries.
	Histograms map[string]HistogramSummary `json:"histograms,omitempty"`

	// RegressionHash is a hash over every regression snapshot, empty if none were recorded.
	RegressionHash string `json:"regression_hash,omitempty"`
}

// NewReport builds a Report from aggregated statistics.
func NewReport(campaignID string, masterSeed string, s *Statistics) (*Report, error) {
	report := &Report{
		CampaignID:   campaignID,
		MasterSeed:   masterSeed,
		Iterations:   s.Iterations,
		Findings:     s.Findings,
		Buckets:      make(map[Category]Bucket, len(s.Buckets)),
		Transactions: s.Transactions,
		Accumulators: make(map[string]float64),
		Histograms:   make(map[string]HistogramSummary),
	}
	for category, bucket := range s.Buckets {
		report.Buckets[category] = bucket.Clone()
	}
	for name, m := range s.Metrics {
		switch m.Kind {
		case AccumulatorMetric:
			report.Accumulators[name] = m.Total
		case HistogramMetric:
			report.Histograms[name] = m.Summary()
		}
	}
	if s.Regression != nil {
		hash, ok, err := s.Regression.StateHash()
		if err != nil {
			return nil, err
		}
		if ok {
			report.RegressionHash = hash
		}
	}
	return report, nil
}

// WriteJSON writes the report to path as indented JSON. The file is replaced atomically.
func (r *Report) WriteJSON(path string) error {
	b, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to encode statistics report")
	}
	return utils.WriteFileAtomic(path, b, 0644)
}

// WriteBuckets writes buckets in the persisted statistics schema.
func WriteBuckets(w io.Writer, buckets map[Category]Bucket) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")
	return errors.Wrap(encoder.Encode(buckets), "failed to encode statistics buckets")
}

// ReadBuckets reads buckets written by WriteBuckets.
func ReadBuckets(r io.Reader) (map[Category]Bucket, error) {
	buckets := make(map[Category]Bucket)
	if err := json.NewDecoder(r).Decode(&buckets); err != nil {
		return nil, errors.Wrap(err, "failed to decode statistics buckets")
	}
	return buckets, nil
}

// percentage returns part as a percentage of whole, rounded to two decimal places.
func percentage(part uint64, whole uint64) string {
	if whole == 0 {
		return "0.00%"
	}
	pct := decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(whole)))
	return pct.StringFixed(2) + "%"
}

// RenderTables writes the per-transaction counters and every non-empty bucket to w as console tables.
func (s *Statistics) RenderTables(w io.Writer) {
	transactions := table.NewWriter()
	transactions.SetOutputMirror(w)
	transactions.SetStyle(table.StyleLight)
	transactions.SetTitle("Transactions")
	transactions.AppendHeader(table.Row{"Transaction", "Invoked", "Successful", "Failed", "Panicked", "Invariant failed", "Success rate"})
	for _, name := range s.TransactionNames() {
		t := s.Transactions[name]
		transactions.AppendRow(table.Row{name, t.Invoked, t.Successful, t.Failed, t.Panicked, t.InvariantFailed, percentage(t.Successful, t.Invoked)})
	}
	transactions.Render()

	for _, category := range Categories() {
		bucket := s.Buckets[category]
		if len(bucket) == 0 {
			continue
		}
		findings := table.NewWriter()
		findings.SetOutputMirror(w)
		findings.SetStyle(table.StyleLight)
		findings.SetTitle(string(category))
		findings.AppendHeader(table.Row{"Key", "Occurrences", "Share", "Seed"})
		total := bucket.Total()
		for _, key := range bucket.Keys() {
			entry := bucket[key]
			findings.AppendRow(table.Row{key, entry.Occurrences, percentage(entry.Occurrences, total), entry.SeedHex})
		}
		findings.Render()
	}
}
