package stats

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

// testBuckets returns three buckets with overlapping and disjoint keys, some examples conflicting.
func testBuckets() (Bucket, Bucket, Bucket) {
	a := NewBucket()
	a.Record("Custom(1)", "0xcc", []string{"log a"})
	a.Record("Custom(1)", "0x00", nil)
	a.Record("InsufficientFunds", "0xaa", nil)

	b := NewBucket()
	b.Record("Custom(1)", "0xbb", []string{"log b"})
	b.Record("panic", "", nil)

	c := NewBucket()
	c.Record("InsufficientFunds", "0x11", []string{"log c"})
	c.Record("panic", "0xdd", nil)
	c.Record("only-c", "0xee", nil)
	return a, b, c
}

// TestBucketMergeIsAssociativeAndCommutative checks merge laws over overlapping and disjoint key sets.
func TestBucketMergeIsAssociativeAndCommutative(t *testing.T) {
	a, b, c := testBuckets()

	assert.True(t, a.Merge(b).Equal(b.Merge(a)))
	assert.True(t, a.Merge(c).Equal(c.Merge(a)))
	assert.True(t, a.Merge(b).Merge(c).Equal(a.Merge(b.Merge(c))))
	assert.True(t, c.Merge(a).Merge(b).Equal(a.Merge(b).Merge(c)))

	merged := a.Merge(b).Merge(c)
	assert.EqualValues(t, 3, merged["Custom(1)"].Occurrences)
	assert.Equal(t, "0xbb", merged["Custom(1)"].SeedHex)
	assert.Equal(t, []string{"log b"}, merged["Custom(1)"].Logs)
	assert.Equal(t, "0x11", merged["InsufficientFunds"].SeedHex)
	// An entry without an example takes the other side's example
	assert.Equal(t, "0xdd", merged["panic"].SeedHex)
	assert.EqualValues(t, 8, merged.Total())
	assert.Equal(t, []string{"Custom(1)", "InsufficientFunds", "only-c", "panic"}, merged.Keys())

	// Merge leaves its operands unchanged
	assert.EqualValues(t, 2, a["Custom(1)"].Occurrences)
}

// TestBucketMergeKeepsSmallestExample checks that merges retain the smallest example, not the first one seen.
func TestBucketMergeKeepsSmallestExample(t *testing.T) {
	earlier := NewBucket()
	earlier.Record("Custom(2)", "0xff", []string{"earlier"})
	later := NewBucket()
	later.Record("Custom(2)", "0x01", []string{"later"})

	merged := earlier.Merge(later)
	assert.EqualValues(t, 2, merged["Custom(2)"].Occurrences)
	assert.Equal(t, "0x01", merged["Custom(2)"].SeedHex)
	assert.Equal(t, []string{"later"}, merged["Custom(2)"].Logs)

	// Equal seeds fall back to comparing logs
	sameSeed := NewBucket()
	sameSeed.Record("Custom(2)", "0x01", []string{"b"})
	other := NewBucket()
	other.Record("Custom(2)", "0x01", []string{"a"})
	assert.Equal(t, []string{"a"}, sameSeed.Merge(other)["Custom(2)"].Logs)
	assert.Equal(t, []string{"a"}, other.Merge(sameSeed)["Custom(2)"].Logs)
}

// TestBucketRecordKeepsFirstExample checks that repeated records only add occurrences.
func TestBucketRecordKeepsFirstExample(t *testing.T) {
	bucket := NewBucket()
	bucket.Record("key", "0x02", []string{"first"})
	bucket.Record("key", "0x01", []string{"second"})
	assert.EqualValues(t, 2, bucket["key"].Occurrences)
	assert.Equal(t, "0x02", bucket["key"].SeedHex)
	assert.Equal(t, []string{"first"}, bucket["key"].Logs)
}

// TestStatisticsMerge checks counters, buckets and metrics merge across workers.
func TestStatisticsMerge(t *testing.T) {
	a := NewStatistics()
	a.Iterations = 2
	a.IncreaseInvoked("deposit")
	a.IncreaseSuccessful("deposit")
	a.Record(CategoryInvariants, "balance", "0x01", nil)
	require.NoError(t, a.AddToAccumulator("volume", 1.5))
	require.NoError(t, a.AddToHistogram("amounts", 3))

	b := NewStatistics()
	b.Iterations = 3
	b.Findings = 1
	b.IncreaseInvoked("deposit")
	b.IncreaseFailed("deposit")
	b.IncreaseInvoked("withdraw")
	b.IncreasePanicked("withdraw")
	b.Record(CategoryInvariants, "balance", "0x02", nil)
	require.NoError(t, b.AddToAccumulator("volume", 2))
	require.NoError(t, b.AddToHistogram("amounts", 1))
	require.Error(t, b.AddToHistogram("volume", 1))

	merged, err := a.Merge(b)
	require.NoError(t, err)
	assert.EqualValues(t, 5, merged.Iterations)
	assert.EqualValues(t, 1, merged.Findings)
	assert.Equal(t, TransactionStats{Invoked: 2, Successful: 1, Failed: 1}, merged.Transactions["deposit"])
	assert.Equal(t, TransactionStats{Invoked: 1, Panicked: 1}, merged.Transactions["withdraw"])
	assert.EqualValues(t, 2, merged.Buckets[CategoryInvariants]["balance"].Occurrences)
	assert.Equal(t, 3.5, merged.Metrics["volume"].Total)
	assert.Equal(t, []float64{1, 3}, merged.Metrics["amounts"].Values)
	assert.Equal(t, []string{"deposit", "withdraw"}, merged.TransactionNames())

	// Operands are unchanged
	assert.EqualValues(t, 2, a.Iterations)
	assert.Equal(t, []float64{3}, a.Metrics["amounts"].Values)

	// Mismatched metric kinds fail to merge
	c := NewStatistics()
	require.NoError(t, c.AddToHistogram("volume", 1))
	_, err = a.Merge(c)
	assert.Error(t, err)

	a.Reset()
	assert.Zero(t, a.Iterations)
	assert.Empty(t, a.Transactions)
	assert.Len(t, a.Buckets, len(Categories()))
}

// TestHistogramSummary checks histogram summaries.
func TestHistogramSummary(t *testing.T) {
	s := NewStatistics()
	for _, v := range []float64{4, 1, 2, 1} {
		require.NoError(t, s.AddToHistogram("h", v))
	}
	summary := s.Metrics["h"].Summary()
	assert.EqualValues(t, 4, summary.Count)
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 4.0, summary.Max)
	assert.Equal(t, 2.0, summary.Avg)
	assert.Equal(t, 1.5, summary.Median)
	assert.Equal(t, 8.0, summary.Sum)
	// Distribution {1: 1/2, 2: 1/4, 4: 1/4}
	assert.InDelta(t, 1.5, summary.Entropy, 1e-9)

	require.NoError(t, s.AddToHistogram("constant", 7))
	assert.Equal(t, 0.0, s.Metrics["constant"].Summary().Entropy)
}

// TestRegressionMonitor checks that state hashes are stable and sensitive to account data.
func TestRegressionMonitor(t *testing.T) {
	address := types.NewKeypairFromSeed([32]byte{1}).Address()
	build := func(data []byte) *RegressionMonitor {
		r := NewRegressionMonitor()
		r.Monitor("0x01", "vault", address, &types.Account{Data: data})
		r.Monitor("0x02", "vault", address, nil)
		return r
	}

	_, ok, err := NewRegressionMonitor().StateHash()
	require.NoError(t, err)
	assert.False(t, ok)

	first, ok, err := build([]byte{1}).StateHash()
	require.NoError(t, err)
	assert.True(t, ok)
	second, _, err := build([]byte{1}).StateHash()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	third, _, err := build([]byte{2}).StateHash()
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	merged := NewRegressionMonitor()
	merged.MergeFrom(build([]byte{1}))
	assert.Equal(t, 2, merged.Len())
}

// TestReport checks the persisted bucket schema round trip, the JSON report and the console tables.
func TestReport(t *testing.T) {
	s := NewStatistics()
	s.Iterations = 10
	s.IncreaseInvoked("deposit")
	s.IncreaseSuccessful("deposit")
	s.Record(CategoryPanics, "overflow", "0x0a", []string{"Program log: boom"})
	require.NoError(t, s.AddToAccumulator("volume", 5))
	require.NoError(t, s.AddToHistogram("amounts", 5))

	var buf bytes.Buffer
	require.NoError(t, WriteBuckets(&buf, s.Buckets))
	assert.Contains(t, buf.String(), `"seed_hex": "0x0a"`)
	buckets, err := ReadBuckets(&buf)
	require.NoError(t, err)
	assert.True(t, buckets[CategoryPanics].Equal(s.Buckets[CategoryPanics]))

	report, err := NewReport("campaign", "0x00", s)
	require.NoError(t, err)
	assert.Equal(t, 5.0, report.Accumulators["volume"])
	assert.EqualValues(t, 1, report.Histograms["amounts"].Count)
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.WriteJSON(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"campaign_id": "campaign"`)

	var table bytes.Buffer
	s.RenderTables(&table)
	assert.Contains(t, table.String(), "deposit")
	assert.Contains(t, table.String(), "100.00%")
	assert.Contains(t, table.String(), "overflow")

	assert.Equal(t, "33.33%", percentage(1, 3))
	assert.Equal(t, "0.00%", percentage(0, 0))
}

// TestFindingStore checks synchronous findings and buffered statistics snapshots.
func TestFindingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.db")
	store, err := OpenFindingStore(path)
	require.NoError(t, err)

	require.NoError(t, store.RecordFinding(FindingRecord{CampaignID: "c", Category: CategoryInvariants, Key: "balance", SeedHex: "0x01"}))
	require.NoError(t, store.RecordFinding(FindingRecord{CampaignID: "c", Category: CategoryPanics, Key: "overflow", Logs: []string{"boom"}}))
	findings, err := store.Findings()
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "balance", findings[0].Key)
	assert.Equal(t, []string{"boom"}, findings[1].Logs)
	assert.NotZero(t, findings[0].Timestamp)

	// Snapshots stay buffered until flushed
	s := NewStatistics()
	s.Iterations = 4
	s.Record(CategoryErrors, "InsufficientFunds", "0x02", nil)
	require.NoError(t, store.BufferStatistics(s))
	latest, err := store.LatestStatistics()
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.Close())
	store, err = OpenFindingStore(path)
	require.NoError(t, err)
	defer store.Close()
	latest, err = store.LatestStatistics()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.EqualValues(t, 4, latest.Iterations)
	assert.EqualValues(t, 1, latest.Buckets[CategoryErrors]["InsufficientFunds"].Occurrences)

	findings, err = store.Findings()
	require.NoError(t, err)
	assert.Len(t, findings, 2)
}

// TestReporter checks that submitted deltas are merged into the final aggregate.
func TestReporter(t *testing.T) {
	reporter := NewReporter(nil)
	reporter.Start()
	for i := 0; i < 10; i++ {
		delta := NewStatistics()
		delta.Iterations = 1
		delta.Record(CategoryErrors, "InsufficientFunds", "0x01", nil)
		reporter.Submit(delta)
	}
	final := reporter.Close()
	assert.EqualValues(t, 10, final.Iterations)
	assert.EqualValues(t, 10, final.Buckets[CategoryErrors]["InsufficientFunds"].Occurrences)
	// Closing twice returns the same aggregate
	assert.EqualValues(t, 10, reporter.Close().Iterations)
}

// TestReporterSnapshotsOnInterval checks that the aggregate is snapshotted every snapshotInterval deltas and once
// more on close, and that snapshots leave the regression hashes to the final aggregate.
func TestReporterSnapshotsOnInterval(t *testing.T) {
	store, err := OpenFindingStore(filepath.Join(t.TempDir(), "findings.db"))
	require.NoError(t, err)
	defer store.Close()

	address := types.NewKeypairFromSeed([32]byte{2}).Address()
	reporter := NewReporter(store)
	reporter.snapshotInterval = 4
	reporter.Start()
	for i := 0; i < 10; i++ {
		delta := NewStatistics()
		delta.Iterations = 1
		delta.Regression.Monitor(fmt.Sprintf("0x%02x", i), "vault", address, &types.Account{Data: []byte{byte(i)}})
		reporter.Submit(delta)
	}
	final := reporter.Close()
	assert.EqualValues(t, 10, final.Iterations)
	assert.Equal(t, 10, final.Regression.Len())

	require.NoError(t, store.Flush())
	var snapshots int
	require.NoError(t, store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(statisticsBucket).ForEach(func(k, v []byte) error {
			snapshots++
			return nil
		})
	}))
	assert.Equal(t, 3, snapshots)

	latest, err := store.LatestStatistics()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.EqualValues(t, 10, latest.Iterations)
	assert.Zero(t, latest.Regression.Len())
}
