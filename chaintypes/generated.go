package chaintypes

import (
	"encoding/binary"
	"time"

	"github.com/asset-chain/chain-controller/utils/cser"
)

// GeneratedRecord is the persisted form of a deferred transaction awaiting
// execution: {id, sender, sender_id, expiration, delay_until,
// published_time, packed_transaction_bytes}.
type GeneratedRecord struct {
	ID            [32]byte
	Sender        string
	SenderID      uint64
	Expiration    time.Time
	DelayUntil    time.Time
	PublishedTime time.Time
	Packed        []byte
}

// GeneratedKey returns the (sender, sender_id)-prefixed storage key used to
// index a generated record, so cancellation-by-sender-id can delete with a
// prefix scan.
func GeneratedKey(sender string, senderID uint64) []byte {
	key := make([]byte, 0, len(sender)+1+8)
	key = append(key, []byte(sender)...)
	key = append(key, 0)
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], senderID)
	return append(key, idBuf[:]...)
}

// NewGeneratedRecord builds a GeneratedRecord from a just-produced deferred
// transaction.
func NewGeneratedRecord(d *DeferredTransaction, publishedTime time.Time) GeneratedRecord {
	id := d.Id()
	return GeneratedRecord{
		ID:            id,
		Sender:        d.Sender,
		SenderID:      d.SenderID,
		Expiration:    d.Expiration,
		DelayUntil:    d.ExecuteAfter,
		PublishedTime: publishedTime,
		Packed:        PackDeferred(d),
	}
}

// Deferred decodes the record's packed bytes back into a DeferredTransaction.
func (g *GeneratedRecord) Deferred() (*DeferredTransaction, error) {
	return UnpackDeferred(g.Packed)
}

// PackGeneratedRecord/UnpackGeneratedRecord give GeneratedRecord a CSER
// encoding for storage, the same scheme the rest of chaintypes uses.
func PackGeneratedRecord(g *GeneratedRecord) []byte {
	raw, _ := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.FixedBytes(g.ID[:])
		w.SliceBytes([]byte(g.Sender))
		w.U64(g.SenderID)
		w.U64(uint64(g.Expiration.Unix()))
		w.U64(uint64(g.DelayUntil.Unix()))
		w.U64(uint64(g.PublishedTime.Unix()))
		w.SliceBytes(g.Packed)
		return nil
	})
	return raw
}

func UnpackGeneratedRecord(raw []byte) (*GeneratedRecord, error) {
	var g GeneratedRecord
	err := cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		r.FixedBytes(g.ID[:])
		g.Sender = string(r.SliceBytes(cser.MaxAlloc))
		g.SenderID = r.U64()
		g.Expiration = time.Unix(int64(r.U64()), 0).UTC()
		g.DelayUntil = time.Unix(int64(r.U64()), 0).UTC()
		g.PublishedTime = time.Unix(int64(r.U64()), 0).UTC()
		g.Packed = r.SliceBytes(cser.MaxAlloc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}
