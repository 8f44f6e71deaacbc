package store

import (
	"bytes"
	"sort"
	"sync"
)

// memStore is an in-memory Store: each table is a sorted byte-key map, and
// writes apply directly to that map. Undo is implemented by recording a
// pre-image per write — a stack of write-sets where each level records
// (key -> pre-image) — rather than by copy-on-write snapshotting, since
// the controller never has more than one live branch of sessions at a
// time
type memStore struct {
	mu       sync.Mutex
	tables   map[string]map[string][]byte
	revision uint64
}

// NewMemStore returns an empty in-memory Store, suitable for tests and for
// a fake/dev node that does not need state to survive a restart.
func NewMemStore() Store {
	return &memStore{tables: make(map[string]map[string][]byte)}
}

func (s *memStore) table(name string) map[string][]byte {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string][]byte)
		s.tables[name] = t
	}
	return t
}

func (s *memStore) StartUndoSession() Session {
	return &memSession{store: s}
}

func (s *memStore) Revision() uint64 { return s.revision }

// Commit bumps the revision counter. The in-memory backend keeps no undo
// log beyond the Session objects reachable through the call stack, so
// there is nothing further to prune here; a durable backend (e.g. one
// backed by bbolt) would drop write-ahead history below rev instead.
func (s *memStore) Commit(rev uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev > s.revision {
		s.revision = rev
	}
	return nil
}

func (s *memStore) Close() error { return nil }

type writeRecord struct {
	table    string
	key      string
	hadValue bool
	oldValue []byte
}

// memSession is one frame of the nested undo stack.
type memSession struct {
	store  *memStore
	parent *memSession
	writes []writeRecord
	closed bool
}

func (s *memSession) Index(table string) Index {
	return &memIndex{session: s, table: table}
}

func (s *memSession) Push() Session {
	return &memSession{store: s.store, parent: s}
}

func (s *memSession) Squash() {
	if s.closed {
		return
	}
	s.closed = true
	if s.parent == nil {
		// Squashing the outermost session commits it: bump the store's
		// revision so Commit(rev) can later prune up to this point.
		s.store.mu.Lock()
		s.store.revision++
		s.store.mu.Unlock()
		return
	}
	s.parent.writes = append(s.parent.writes, s.writes...)
}

func (s *memSession) Undo() {
	if s.closed {
		return
	}
	s.closed = true
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for i := len(s.writes) - 1; i >= 0; i-- {
		w := s.writes[i]
		t := s.store.table(w.table)
		if w.hadValue {
			t[w.key] = w.oldValue
		} else {
			delete(t, w.key)
		}
	}
}

func (s *memSession) record(table string, key []byte) {
	t := s.store.table(table)
	old, had := t[string(key)]
	var oldCopy []byte
	if had {
		oldCopy = append([]byte(nil), old...)
	}
	s.writes = append(s.writes, writeRecord{table: table, key: string(key), hadValue: had, oldValue: oldCopy})
}

// memIndex is a view of one table scoped to a session, recording
// pre-images for every write so the session can undo them.
type memIndex struct {
	session *memSession
	table   string
}

func (idx *memIndex) Get(key []byte) ([]byte, error) {
	idx.session.store.mu.Lock()
	defer idx.session.store.mu.Unlock()
	t := idx.session.store.table(idx.table)
	v, ok := t[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (idx *memIndex) Put(key, value []byte) error {
	idx.session.store.mu.Lock()
	idx.session.record(idx.table, key)
	t := idx.session.store.table(idx.table)
	t[string(key)] = append([]byte(nil), value...)
	idx.session.store.mu.Unlock()
	return nil
}

func (idx *memIndex) Delete(key []byte) error {
	idx.session.store.mu.Lock()
	idx.session.record(idx.table, key)
	t := idx.session.store.table(idx.table)
	delete(t, string(key))
	idx.session.store.mu.Unlock()
	return nil
}

func (idx *memIndex) Scan(start, end []byte, fn func(key, value []byte) bool) error {
	idx.session.store.mu.Lock()
	t := idx.session.store.table(idx.table)
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	idx.session.store.mu.Unlock()

	for _, k := range keys {
		if start != nil && bytes.Compare([]byte(k), start) < 0 {
			continue
		}
		if end != nil && bytes.Compare([]byte(k), end) >= 0 {
			break
		}
		idx.session.store.mu.Lock()
		v, ok := t[k]
		idx.session.store.mu.Unlock()
		if !ok {
			continue
		}
		if !fn([]byte(k), v) {
			break
		}
	}
	return nil
}
