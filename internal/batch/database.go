package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "batches"

// ErrNotFound is returned when no batch has the requested id
var ErrNotFound = errors.New("batch not found")

// DB defines the interface for database operations
type DB interface {
	// SaveBatch creates or replaces a batch
	SaveBatch(batch *Batch) error

	// GetBatch retrieves a batch by ID
	GetBatch(id string) (*Batch, error)

	// ListBatches returns all batches, newest first
	ListBatches() ([]*Batch, error)

	// DeleteBatch removes a batch
	DeleteBatch(id string) error

	Close() error
}

// BoltDB stores batches as JSON documents in a single bucket
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the archive at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveBatch stores a batch under its ID
func (b *BoltDB) SaveBatch(batch *Batch) error {
	if batch.ID == "" {
		return errors.New("batch has no id")
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshaling batch: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(batch.ID), data)
	})
}

// GetBatch retrieves a batch by ID
func (b *BoltDB) GetBatch(id string) (*Batch, error) {
	var batch Batch
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &batch)
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListBatches returns every batch ordered by creation time, newest first
func (b *BoltDB) ListBatches() ([]*Batch, error) {
	batches := make([]*Batch, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var batch Batch
			if err := json.Unmarshal(v, &batch); err != nil {
				return fmt.Errorf("unmarshaling batch %s: %w", k, err)
			}
			batches = append(batches, &batch)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})
	return batches, nil
}

// DeleteBatch removes a batch. Deleting a missing batch returns ErrNotFound.
func (b *BoltDB) DeleteBatch(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database
func (b *BoltDB) Close() error {
	return b.db.Close()
}
