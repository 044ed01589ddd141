package repository

import (
	"bridge-project/db"
)

// Store runs ledger operations. Update is all-or-nothing: an error from fn
// discards every write fn made. View sees a consistent snapshot.
type Store interface {
	Update(fn func(r *Repository) error) error
	View(fn func(r *Repository) error) error
}

// LedgerStore implements Store on LevelDB transactions.
type LedgerStore struct {
	db       *db.LevelDB
	prefixes Prefixes
}

// NewLedgerStore creates a store whose foreign-facing prefixes name foreignChain.
func NewLedgerStore(ldb *db.LevelDB, foreignChain string) *LedgerStore {
	return &LedgerStore{db: ldb, prefixes: ForeignPrefixes(foreignChain)}
}

func (s *LedgerStore) Update(fn func(r *Repository) error) error {
	return s.db.Update(func(kv db.KV) error {
		return fn(New(kv, s.prefixes))
	})
}

func (s *LedgerStore) View(fn func(r *Repository) error) error {
	return s.db.View(func(kv db.KV) error {
		return fn(New(kv, s.prefixes))
	})
}
