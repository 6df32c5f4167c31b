package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketJournal = []byte("journal")

// DefaultMaxEntries is the journal capacity used when none is configured.
const DefaultMaxEntries = 1000

// BoltJournal implements Journal using BoltDB. Keys are big-endian sequence
// numbers so cursor order is insertion order.
type BoltJournal struct {
	db  *bolt.DB
	max int
}

// NewBoltJournal opens or creates a BoltDB journal holding at most
// maxEntries records.
func NewBoltJournal(path string, maxEntries int) (*BoltJournal, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJournal)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltJournal{db: db, max: maxEntries}, nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func (j *BoltJournal) Append(typ string, at time.Time, data any) (uint64, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("encode %s entry: %w", typ, err)
	}

	var seq uint64
	err = j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJournal)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketJournal)
		}
		n, err := b.NextSequence()
		if err != nil {
			return err
		}
		seq = n
		v, err := json.Marshal(Entry{Seq: seq, Time: at, Type: typ, Data: raw})
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), v); err != nil {
			return err
		}
		return j.trim(b, seq)
	})
	return seq, err
}

// trim deletes entries older than the newest j.max. Sequences are dense,
// so the oldest key alone tells how many must go.
func (j *BoltJournal) trim(b *bolt.Bucket, newest uint64) error {
	c := b.Cursor()
	for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k)+uint64(j.max) <= newest; k, _ = c.First() {
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

func (j *BoltJournal) Get(seq uint64) (Entry, error) {
	var e Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJournal)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketJournal)
		}
		data := b.Get(seqKey(seq))
		if data == nil {
			return fmt.Errorf("entry %d: %w", seq, ErrNotFound)
		}
		return json.Unmarshal(data, &e)
	})
	return e, err
}

func (j *BoltJournal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 || limit > j.max {
		limit = j.max
	}
	entries := make([]Entry, 0, limit)
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJournal)
		if b == nil {
			return nil // no bucket = no entries
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(entries) < limit; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func (j *BoltJournal) Len() (int, error) {
	var n int
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJournal)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		first, _ := c.First()
		last, _ := c.Last()
		if first != nil {
			n = int(binary.BigEndian.Uint64(last)-binary.BigEndian.Uint64(first)) + 1
		}
		return nil
	})
	return n, err
}

func (j *BoltJournal) Close() error {
	return j.db.Close()
}
