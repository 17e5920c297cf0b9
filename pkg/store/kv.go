package store

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// KV is the key value store the tables are kept in.
type KV interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key with the prefix, in key order,
	// until fn returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
	Close() error
}

// Open opens the backend by name: "memory", "leveldb" or "badger".
func Open(backend, dir string) (KV, error) {
	switch backend {
	case "", "memory":
		return NewMemory(), nil
	case "leveldb":
		db, err := leveldb.New(filepath.Join(dir, "leveldb"), 16, 16, "sahayog/db/", false)
		if err != nil {
			return nil, err
		}
		return &ethKV{db: db}, nil
	case "badger":
		return OpenBadger(filepath.Join(dir, "badger"))
	}
	return nil, fmt.Errorf("unknown database backend: %s", backend)
}

// NewMemory returns an in-memory store.
func NewMemory() KV {
	return &ethKV{db: memorydb.New()}
}

// ethKV adapts an ethdb key value store.
type ethKV struct {
	db ethdb.KeyValueStore
}

func (e *ethKV) Get(key []byte) ([]byte, error) {
	ok, err := e.db.Has(key)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrNotFound
	}

	return e.db.Get(key)
}

func (e *ethKV) Has(key []byte) (bool, error) {
	return e.db.Has(key)
}

func (e *ethKV) Put(key, value []byte) error {
	return e.db.Put(key, value)
}

func (e *ethKV) Delete(key []byte) error {
	return e.db.Delete(key)
}

func (e *ethKV) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	it := e.db.NewIterator(prefix, nil)
	defer it.Release()

	for it.Next() {
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		if !fn(k, v) {
			break
		}
	}
	return it.Error()
}

func (e *ethKV) Close() error {
	return e.db.Close()
}

type badgerKV struct {
	db *badger.DB
}

// OpenBadger opens a badger store in dir, an empty dir keeps the data
// in memory.
func OpenBadger(dir string) (KV, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerKV{db: db}, nil
}

func (b *badgerKV) Get(key []byte) ([]byte, error) {
	var v []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		v, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (b *badgerKV) Has(key []byte) (bool, error) {
	_, err := b.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *badgerKV) Put(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (b *badgerKV) Delete(key []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (b *badgerKV) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if !fn(item.KeyCopy(nil), v) {
				return nil
			}
		}
		return nil
	})
}

func (b *badgerKV) Close() error {
	return b.db.Close()
}
