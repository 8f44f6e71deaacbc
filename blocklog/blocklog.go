// Package blocklog is the append-only, irreversible history of the chain:
// every block once it can no longer be displaced by a fork switch. It is
// the Go analogue of the source's block_log and, structurally, of
// ffldb's pendingBlock/writeCursor append-then-index pattern (store raw
// bytes in one flat file, keep an (offset, length) index so random reads
// don't need to scan) — simplified to a single file since the controller
// never needs ffldb's multi-file rotation at this layer.
//
// It is built on afero so tests can run against an in-memory filesystem
// instead of touching disk.
package blocklog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/asset-chain/chain-controller/chaintypes"
)

// ErrNotFound is returned when a requested block is not present in the log.
var ErrNotFound = errors.New("blocklog: not found")

// entry is the index record kept for one logged block: where its bytes
// live in the data file.
type entry struct {
	offset int64
	length uint32
	id     chaintypes.BlockID
}

// Log is the durable, append-only store of irreversible blocks. It keeps
// one file, a flat data file of concatenated length-prefixed blocks, plus
// an in-memory index (rebuilt from the data file on open) from height and
// from id to that block's offset.
type Log struct {
	fs   afero.Fs
	dir  string
	data afero.File

	mu      sync.RWMutex
	byHeight []entry // index 0 unused; byHeight[h] is block h
	byID     map[chaintypes.BlockID]uint32
}

const dataFileName = "blocks.log"

// Open opens (creating if absent) a block log rooted at dir on fs.
func Open(fs afero.Fs, dir string) (*Log, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	f, err := fs.OpenFile(fmt.Sprintf("%s/%s", dir, dataFileName), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	l := &Log{fs: fs, dir: dir, data: f, byID: make(map[chaintypes.BlockID]uint32)}
	l.byHeight = append(l.byHeight, entry{}) // index 0 is an unused placeholder; real blocks start at height 1
	if err := l.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) rebuildIndex() error {
	var offset int64
	for {
		var lenBuf [4]byte
		n, err := l.data.ReadAt(lenBuf[:], offset)
		if n < 4 || err != nil {
			break
		}
		length := binary.BigEndian.Uint32(lenBuf[:])
		body := make([]byte, length)
		if _, err := l.data.ReadAt(body, offset+4); err != nil {
			break
		}
		b, err := chaintypes.UnpackBlock(body)
		if err != nil {
			return fmt.Errorf("blocklog: corrupt entry at offset %d: %w", offset, err)
		}
		b.SetHeightHint(uint32(len(l.byHeight)))
		id := b.ID()
		l.appendIndex(entry{offset: offset, length: length, id: id})
		offset += 4 + int64(length)
	}
	return nil
}

func (l *Log) appendIndex(e entry) {
	l.byHeight = append(l.byHeight, e)
	l.byID[e.id] = uint32(len(l.byHeight) - 1)
}

// Append writes b as the next entry in the log. The caller must append in
// strict height order — the block processor only calls this once a block
// has passed the last-irreversible-block threshold
func (l *Log) Append(b *chaintypes.SignedBlock) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	wantHeight := uint32(len(l.byHeight))
	if b.Height() != wantHeight {
		return fmt.Errorf("blocklog: out-of-order append: got height %d, want %d", b.Height(), wantHeight)
	}

	raw := chaintypes.PackBlock(b)
	offset, err := l.data.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(raw)))
	if _, err := l.data.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := l.data.Write(raw); err != nil {
		return err
	}
	l.appendIndex(entry{offset: offset, length: uint32(len(raw)), id: b.ID()})
	return nil
}

// readAt unpacks the block at e and restores its height hint so a caller's
// subsequent ID() call reproduces the id the index was built from — Unpack
// leaves it unset.
func (l *Log) readAt(e entry, height uint32) (*chaintypes.SignedBlock, error) {
	body := make([]byte, e.length)
	if _, err := l.data.ReadAt(body, e.offset+4); err != nil {
		return nil, err
	}
	b, err := chaintypes.UnpackBlock(body)
	if err != nil {
		return nil, err
	}
	b.SetHeightHint(height)
	return b, nil
}

// ReadByHeight returns the block at height, or ErrNotFound.
func (l *Log) ReadByHeight(height uint32) (*chaintypes.SignedBlock, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if height == 0 || int(height) >= len(l.byHeight) {
		return nil, ErrNotFound
	}
	return l.readAt(l.byHeight[height], height)
}

// ReadByID returns the block with the given id, or ErrNotFound.
func (l *Log) ReadByID(id chaintypes.BlockID) (*chaintypes.SignedBlock, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return l.readAt(l.byHeight[idx], idx)
}

// Head returns the most recently appended block, or ErrNotFound if the log
// is empty.
func (l *Log) Head() (*chaintypes.SignedBlock, error) {
	l.mu.RLock()
	n := len(l.byHeight)
	l.mu.RUnlock()
	if n == 0 {
		return nil, ErrNotFound
	}
	return l.ReadByHeight(uint32(n - 1))
}

// Height returns one more than the highest stored height (the index's
// unused slot 0 is counted), so an empty log reports 1 and the highest
// valid height is Height()-1.
func (l *Log) Height() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint32(len(l.byHeight))
}

// Close releases the underlying file.
func (l *Log) Close() error {
	return l.data.Close()
}
