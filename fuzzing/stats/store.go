package stats

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/fxamacker/cbor"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	findingsBucket   = []byte("findings")
	statisticsBucket = []byte("statistics")
)

// FindingRecord is a finding as persisted in a FindingStore.
type FindingRecord struct {
	// CampaignID identifies the campaign the finding was recorded in.
	CampaignID string `cbor:"campaign_id"`

	// Category is the statistics category the finding was recorded under.
	Category Category `cbor:"category"`

	// Key is the key the finding was recorded under within its category.
	Key string `cbor:"key"`

	// Transaction is the name of the transaction which produced the finding.
	Transaction string `cbor:"transaction"`

	// SeedHex is the iteration seed that reproduces the finding.
	SeedHex string `cbor:"seed_hex"`

	// Message describes the finding.
	Message string `cbor:"message"`

	// Logs are the ledger log lines emitted by the failing transaction.
	Logs []string `cbor:"logs"`

	// Timestamp is the unix time, in nanoseconds, the finding was recorded at.
	Timestamp int64 `cbor:"timestamp"`
}

// FindingStore persists findings and statistics snapshots in a bbolt database. Findings are committed synchronously,
// before RecordFinding returns, so they survive a crash of the process right after. Statistics snapshots are only
// needed for reporting and are buffered until flushThreshold snapshots are pending.
type FindingStore struct {
	db *bbolt.DB

	pendingLock      sync.Mutex
	pendingSnapshots [][]byte
	flushThreshold   int
}

// OpenFindingStore opens or creates the store at path.
func OpenFindingStore(path string) (*FindingStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open finding store %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(findingsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(statisticsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not initialize finding store")
	}

	return &FindingStore{
		db:               db,
		pendingSnapshots: make([][]byte, 0),
		flushThreshold:   25,
	}, nil
}

// sequenceKey encodes a bucket sequence number as a big-endian key, so keys iterate in insertion order.
func sequenceKey(sequence uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, sequence)
}

// RecordFinding durably commits a finding.
func (s *FindingStore) RecordFinding(record FindingRecord) error {
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().UnixNano()
	}
	b, err := cbor.Marshal(record, cbor.EncOptions{})
	if err != nil {
		return errors.Wrap(err, "failed to encode finding")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(findingsBucket)
		sequence, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		return bucket.Put(sequenceKey(sequence), b)
	})
}

// Findings returns every recorded finding in the order they were recorded.
func (s *FindingStore) Findings() ([]FindingRecord, error) {
	records := make([]FindingRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(findingsBucket).ForEach(func(k, v []byte) error {
			var record FindingRecord
			if err := cbor.Unmarshal(v, &record); err != nil {
				return errors.Wrap(err, "failed to decode finding")
			}
			records = append(records, record)
			return nil
		})
	})
	return records, err
}

// BufferStatistics queues a snapshot of statistics, flushing pending snapshots once the threshold is reached.
func (s *FindingStore) BufferStatistics(statistics *Statistics) error {
	b, err := cbor.Marshal(statistics, cbor.EncOptions{})
	if err != nil {
		return errors.Wrap(err, "failed to encode statistics snapshot")
	}

	s.pendingLock.Lock()
	defer s.pendingLock.Unlock()
	s.pendingSnapshots = append(s.pendingSnapshots, b)
	if len(s.pendingSnapshots) >= s.flushThreshold {
		return s.flushSnapshots()
	}
	return nil
}

// Flush writes every pending statistics snapshot.
func (s *FindingStore) Flush() error {
	s.pendingLock.Lock()
	defer s.pendingLock.Unlock()
	return s.flushSnapshots()
}

// flushSnapshots writes pending snapshots in one transaction. The caller must hold pendingLock.
func (s *FindingStore) flushSnapshots() error {
	if len(s.pendingSnapshots) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(statisticsBucket)
		for _, snapshot := range s.pendingSnapshots {
			sequence, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			if err = bucket.Put(sequenceKey(sequence), snapshot); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to flush statistics snapshots")
	}
	s.pendingSnapshots = s.pendingSnapshots[:0]
	return nil
}

// LatestStatistics returns the most recently flushed statistics snapshot, or nil if none exist.
func (s *FindingStore) LatestStatistics() (*Statistics, error) {
	var statistics *Statistics
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, v := tx.Bucket(statisticsBucket).Cursor().Last()
		if v == nil {
			return nil
		}
		statistics = NewStatistics()
		return errors.Wrap(cbor.Unmarshal(v, statistics), "failed to decode statistics snapshot")
	})
	return statistics, err
}

// Close flushes pending snapshots and closes the database.
func (s *FindingStore) Close() error {
	flushErr := s.Flush()
	closeErr := s.db.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
