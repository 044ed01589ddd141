package db

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = leveldb.ErrNotFound

// ErrReadOnly is returned when writing through a snapshot view.
var ErrReadOnly = errors.New("leveldb: write on read-only view")

// KV is the keyed storage surface the repository layer works against. Both a
// transaction and a snapshot view implement it.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	NewIterator(prefix []byte) iterator.Iterator
}

// LevelDB wraps the actual LevelDB connection
type LevelDB struct {
	conn *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB instance at the given path
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{conn: db}, nil
}

// NewMemLevelDB opens a LevelDB instance backed by memory, used by tests and dry runs.
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{conn: db}, nil
}

// Close safely closes the LevelDB connection
func (l *LevelDB) Close() error {
	return l.conn.Close()
}

// Update runs fn inside a LevelDB transaction. Writes become visible only if
// fn returns nil; any error discards every write fn made. LevelDB admits a
// single open transaction, so concurrent Update calls are serialised.
func (l *LevelDB) Update(fn func(kv KV) error) error {
	tr, err := l.conn.OpenTransaction()
	if err != nil {
		return err
	}
	if err := fn(&txn{tr: tr}); err != nil {
		tr.Discard()
		return err
	}
	return tr.Commit()
}

// View runs fn against a consistent snapshot. Writes fail with ErrReadOnly.
func (l *LevelDB) View(fn func(kv KV) error) error {
	snap, err := l.conn.GetSnapshot()
	if err != nil {
		return err
	}
	defer snap.Release()
	return fn(&view{snap: snap})
}

type txn struct {
	tr *leveldb.Transaction
}

func (t *txn) Get(key []byte) ([]byte, error) {
	return t.tr.Get(key, nil)
}

func (t *txn) Put(key, value []byte) error {
	return t.tr.Put(key, value, nil)
}

func (t *txn) NewIterator(prefix []byte) iterator.Iterator {
	return t.tr.NewIterator(util.BytesPrefix(prefix), nil)
}

type view struct {
	snap *leveldb.Snapshot
}

func (v *view) Get(key []byte) ([]byte, error) {
	return v.snap.Get(key, nil)
}

func (v *view) Put(key, value []byte) error {
	return ErrReadOnly
}

func (v *view) NewIterator(prefix []byte) iterator.Iterator {
	return v.snap.NewIterator(util.BytesPrefix(prefix), nil)
}
