package store

import (
	"go.etcd.io/bbolt"
)

// boltStore persists the controller's own tables (block summary, dedup,
// generated transactions, the two singletons) to a bbolt file, so a node
// survives a restart without replaying from genesis. Undo sessions still
// track pre-images in memory exactly like memStore; only the committed
// (no pending session) state lives in bbolt, written one bbolt
// transaction per Commit.
type boltStore struct {
	db       *bbolt.DB
	mem      *memStore // staging area sessions write through
	revision uint64
}

// OpenBoltStore opens (creating if absent) a bbolt-backed Store at path,
// pre-creating a bucket per controller table.
func OpenBoltStore(path string) (Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	tables := []string{TableBlockSummary, TableTransactionDedup, TableGeneratedTrx, TableGlobalProps, TableDynamicProps, TableAccountUsage}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range tables {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	bs := &boltStore{db: db, mem: &memStore{tables: make(map[string]map[string][]byte)}}
	if err := bs.loadIntoMem(); err != nil {
		db.Close()
		return nil, err
	}
	return bs, nil
}

func (bs *boltStore) loadIntoMem() error {
	return bs.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			t := bs.mem.table(string(name))
			return b.ForEach(func(k, v []byte) error {
				t[string(k)] = append([]byte(nil), v...)
				return nil
			})
		})
	})
}

// StartUndoSession delegates to the in-memory staging area: all reads and
// writes during a pending block go through memStore, and only a Commit
// flushes the now-durable prefix to bbolt.
func (bs *boltStore) StartUndoSession() Session {
	return bs.mem.StartUndoSession()
}

func (bs *boltStore) Revision() uint64 { return bs.mem.Revision() }

// Commit flushes the in-memory tables to bbolt in one write transaction
// and advances the staging store's revision marker. Because the staging
// area already holds the fully-undone, fully-squashed state (every open
// session must have been resolved before Commit is called, same as the
// source's nested-undo-session discipline), this is a straightforward
// full-table sync rather than an incremental diff.
func (bs *boltStore) Commit(rev uint64) error {
	if err := bs.mem.Commit(rev); err != nil {
		return err
	}
	return bs.db.Update(func(tx *bbolt.Tx) error {
		for name, rows := range bs.mem.tables {
			b, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return err
			}
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if _, stillPresent := rows[string(k)]; !stillPresent {
					if err := b.Delete(k); err != nil {
						return err
					}
				}
			}
			for k, v := range rows {
				if err := b.Put([]byte(k), v); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (bs *boltStore) Close() error {
	return bs.db.Close()
}
