package storage

import (
	"bytes"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("neo")

// BBoltStore is a durable Store backed by a single bbolt file with one
// bucket holding the whole flat keyspace (spec.md §6.3 keys already
// carry their own contract-id namespace, so one bucket is enough).
type BBoltStore struct {
	db *bolt.DB
}

// NewBBoltStore opens (creating if necessary) a bbolt-backed store at path.
func NewBBoltStore(path string) (*BBoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BBoltStore{db: db}, nil
}

func (s *BBoltStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		out = append(out, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BBoltStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, value)
	})
}

func (s *BBoltStore) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
}

func (s *BBoltStore) Seek(prefix []byte, f func(k, v []byte) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !f(k, v) {
				break
			}
		}
		return nil
	})
}

func (s *BBoltStore) Close() error { return s.db.Close() }

type boltBatch struct {
	puts    map[string][]byte
	deletes map[string]struct{}
}

func (s *BBoltStore) NewBatch() Batch {
	return &boltBatch{puts: make(map[string][]byte), deletes: make(map[string]struct{})}
}

func (b *boltBatch) Put(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	b.puts[string(key)] = v
	delete(b.deletes, string(key))
}

func (b *boltBatch) Delete(key []byte) {
	b.deletes[string(key)] = struct{}{}
	delete(b.puts, string(key))
}

func (s *BBoltStore) WriteBatch(batch Batch) error {
	bb, ok := batch.(*boltBatch)
	if !ok {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for k, v := range bb.puts {
			if err := bucket.Put([]byte(k), v); err != nil {
				return err
			}
		}
		for k := range bb.deletes {
			if err := bucket.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}
