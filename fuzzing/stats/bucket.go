package stats

import (
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

// Entry describes the occurrences recorded under one key of a Bucket, with an example that reproduces them.
type Entry struct {
	// Occurrences is the number of times the key was recorded.
	Occurrences uint64 `json:"occurrences" cbor:"occurrences"`

	// SeedHex is the iteration seed of the retained example, empty if none was recorded.
	SeedHex string `json:"seed_hex,omitempty" cbor:"seed_hex,omitempty"`

	// Logs are the ledger log lines of the retained example.
	Logs []string `json:"logs,omitempty" cbor:"logs,omitempty"`
}

// hasExample indicates whether the entry carries an example.
func (e Entry) hasExample() bool {
	return e.SeedHex != "" || len(e.Logs) > 0
}

// compareExamples orders examples by seed and then by logs. Merges keep the smaller example, so the result does
// not depend on merge order.
func compareExamples(a Entry, b Entry) int {
	if c := strings.Compare(a.SeedHex, b.SeedHex); c != 0 {
		return c
	}
	return slices.Compare(a.Logs, b.Logs)
}

// mergeEntries combines two entries for the same key.
func mergeEntries(a Entry, b Entry) Entry {
	merged := Entry{Occurrences: a.Occurrences + b.Occurrences}
	example := a
	switch {
	case !a.hasExample():
		example = b
	case b.hasExample() && compareExamples(b, a) < 0:
		example = b
	}
	merged.SeedHex = example.SeedHex
	merged.Logs = example.Logs
	return merged
}

// Bucket maps a category key, such as an error code, invariant name or panic message, to its occurrences. Entries
// are values and their logs are never mutated after recording, so copies may share them.
type Bucket map[string]Entry

// NewBucket creates an empty Bucket.
func NewBucket() Bucket {
	return make(Bucket)
}

// Record adds one occurrence of key. The first example recorded for a key is kept.
func (b Bucket) Record(key string, seedHex string, logs []string) {
	entry, ok := b[key]
	entry.Occurrences++
	if !ok || !entry.hasExample() {
		entry.SeedHex = seedHex
		entry.Logs = slices.Clone(logs)
	}
	b[key] = entry
}

// MergeFrom merges other into b in place, following the same rules as Merge.
func (b Bucket) MergeFrom(other Bucket) {
	for key, entry := range other {
		if existing, ok := b[key]; ok {
			b[key] = mergeEntries(existing, entry)
		} else {
			b[key] = entry
		}
	}
}

// Merge returns a new Bucket holding the merge of b and other. Occurrence counts add. An entry without an example
// takes the other side's. When both sides hold an example for a key, the one with the lexicographically smaller
// seed hex is kept, then the one with the smaller logs if the seeds are equal. Record keeps the first example seen
// within one bucket, but across a merge the retained example is the smallest rather than the first seen, so the
// result does not depend on the order workers submit in. The operation is commutative and associative.
func (b Bucket) Merge(other Bucket) Bucket {
	merged := b.Clone()
	merged.MergeFrom(other)
	return merged
}

// Clone returns a copy of the bucket.
func (b Bucket) Clone() Bucket {
	if b == nil {
		return NewBucket()
	}
	return maps.Clone(b)
}

// Keys returns the bucket's keys, sorted.
func (b Bucket) Keys() []string {
	keys := make([]string, 0, len(b))
	for key := range b {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Total returns the sum of occurrences over every key.
func (b Bucket) Total() uint64 {
	var total uint64
	for _, entry := range b {
		total += entry.Occurrences
	}
	return total
}

// Equal indicates whether two buckets hold the same keys, counts and examples.
func (b Bucket) Equal(other Bucket) bool {
	if len(b) != len(other) {
		return false
	}
	for key, entry := range b {
		o, ok := other[key]
		if !ok || o.Occurrences != entry.Occurrences || compareExamples(o, entry) != 0 {
			return false
		}
	}
	return true
}
