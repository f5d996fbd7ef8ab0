package store

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/ethereum/go-ethereum/rlp"
)

// ErrRollbackTooOld is returned when a retraction reaches below the oldest
// block the undo journal still covers. Recovery requires a resync from
// genesis or from a known-good snapshot.
var ErrRollbackTooOld = errors.New("store: rollback target below journal tail")

// Position is the resume point of the engine: the last block with durably
// processed records, and how many of its records were processed.
type Position struct {
	Block   idx.Block
	Records uint32
}

// journalEntry is one undo record: the value a key held before a write.
// Replaying a block's entries in reverse seq order restores the state as of
// the previous block.
type journalEntry struct {
	Prefix  byte
	Key     []byte
	Prev    []byte
	Existed bool
}

var (
	keyCheckpoint = []byte("checkpoint")
	keyTail       = []byte("tail")
	keyBlockRecs  = byte('b') // 'b' + block number -> record count
)

func journalKey(b idx.Block, seq uint32) []byte {
	return append(bigendian.Uint64ToBytes(uint64(b)), bigendian.Uint32ToBytes(seq)...)
}

func blockRecsKey(b idx.Block) []byte {
	return append([]byte{keyBlockRecs}, bigendian.Uint64ToBytes(uint64(b))...)
}

// BeginBlock declares the block whose records are about to be processed.
// Undo entries written until the next BeginBlock are attributed to it.
// When resuming mid-block after a crash, journaling continues after the
// entries already flushed for that block.
func (s *Store) BeginBlock(b idx.Block) error {
	s.blk = b
	s.seq = 0
	it := s.tables.Journal.NewIterator(bigendian.Uint64ToBytes(uint64(b)), nil)
	defer it.Release()
	for it.Next() {
		s.seq++
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("store journal scan: %w", err)
	}
	return nil
}

func (s *Store) journalPrev(prefix byte, t kvdb.Store, key []byte) error {
	prev, err := t.Get(key)
	if err != nil {
		return fmt.Errorf("store read: %w", err)
	}
	enc, err := rlp.EncodeToBytes(&journalEntry{
		Prefix:  prefix,
		Key:     key,
		Prev:    prev,
		Existed: prev != nil,
	})
	if err != nil {
		return fmt.Errorf("store journal encode: %w", err)
	}
	if err := s.tables.Journal.Put(journalKey(s.blk, s.seq), enc); err != nil {
		return fmt.Errorf("store journal write: %w", err)
	}
	s.seq++
	return nil
}

// FinishBlock records how many records block b carried, so a later rollback
// to b can restore the exact resume position.
func (s *Store) FinishBlock(b idx.Block, records uint32) error {
	return s.tables.Meta.Put(blockRecsKey(b), bigendian.Uint32ToBytes(records))
}

func (s *Store) blockRecords(b idx.Block) (uint32, error) {
	v, err := s.tables.Meta.Get(blockRecsKey(b))
	if err != nil {
		return 0, fmt.Errorf("store read: %w", err)
	}
	if v == nil {
		return 0, nil
	}
	return bigendian.BytesToUint32(v), nil
}

// Checkpoint returns the resume position, or the zero position on a fresh
// database.
func (s *Store) Checkpoint() (Position, error) {
	var pos Position
	ok, err := s.get(s.tables.Meta, keyCheckpoint, &pos)
	if err != nil || !ok {
		return Position{}, err
	}
	return pos, nil
}

// SetCheckpoint stores the resume position. It is committed together with
// the entity writes of the record it acknowledges.
func (s *Store) SetCheckpoint(pos Position) error {
	enc, err := rlp.EncodeToBytes(&pos)
	if err != nil {
		return err
	}
	return s.tables.Meta.Put(keyCheckpoint, enc)
}

// tail is the oldest block the journal still has undo data for.
func (s *Store) tail() (idx.Block, error) {
	v, err := s.tables.Meta.Get(keyTail)
	if err != nil {
		return 0, fmt.Errorf("store read: %w", err)
	}
	if v == nil {
		return 0, nil
	}
	return idx.Block(bigendian.BytesToUint64(v)), nil
}

// Rollback undoes every entity mutation attributed to blocks above `to`,
// restoring the graph exactly as of block `to`, and moves the checkpoint
// back accordingly. The whole rollback is committed atomically.
func (s *Store) Rollback(to idx.Block) error {
	pos, err := s.Checkpoint()
	if err != nil {
		return err
	}
	if pos.Block <= to {
		return nil
	}
	tail, err := s.tail()
	if err != nil {
		return err
	}
	if to+1 < tail {
		return fmt.Errorf("%w: target %d, tail %d", ErrRollbackTooOld, to, tail)
	}

	type undo struct {
		key   []byte
		entry journalEntry
	}
	var undos []undo
	it := s.tables.Journal.NewIterator(nil, bigendian.Uint64ToBytes(uint64(to)+1))
	for it.Next() {
		var e journalEntry
		if err := rlp.DecodeBytes(it.Value(), &e); err != nil {
			it.Release()
			return fmt.Errorf("store journal decode: %w", err)
		}
		undos = append(undos, undo{key: append([]byte{}, it.Key()...), entry: e})
	}
	err = it.Error()
	it.Release()
	if err != nil {
		return fmt.Errorf("store journal scan: %w", err)
	}

	// Journal keys iterate in (block, seq) ascending order; undoing in
	// reverse restores each key's oldest retracted value last.
	for i := len(undos) - 1; i >= 0; i-- {
		e := undos[i].entry
		t, ok := s.byPrefix[e.Prefix]
		if !ok {
			return fmt.Errorf("store journal: unknown table prefix %q", e.Prefix)
		}
		if e.Existed {
			err = t.Put(e.Key, e.Prev)
		} else {
			err = t.Delete(e.Key)
		}
		if err != nil {
			s.Drop()
			return fmt.Errorf("store rollback write: %w", err)
		}
		if err = s.tables.Journal.Delete(undos[i].key); err != nil {
			s.Drop()
			return fmt.Errorf("store rollback write: %w", err)
		}
	}
	for b := to + 1; b <= pos.Block; b++ {
		if err = s.tables.Meta.Delete(blockRecsKey(b)); err != nil {
			s.Drop()
			return fmt.Errorf("store rollback write: %w", err)
		}
	}

	records, err := s.blockRecords(to)
	if err != nil {
		s.Drop()
		return err
	}
	if err = s.SetCheckpoint(Position{Block: to, Records: records}); err != nil {
		s.Drop()
		return err
	}
	return s.Commit()
}

// Prune drops undo data for blocks below `before`, giving up the ability to
// roll back past it. Used to cap journal growth once blocks are final.
func (s *Store) Prune(before idx.Block) error {
	if before == 0 {
		return nil
	}
	it := s.tables.Journal.NewIterator(nil, nil)
	var stale [][]byte
	for it.Next() {
		if idx.Block(bigendian.BytesToUint64(it.Key()[:8])) >= before {
			break
		}
		stale = append(stale, append([]byte{}, it.Key()...))
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return fmt.Errorf("store journal scan: %w", err)
	}
	for _, k := range stale {
		if err := s.tables.Journal.Delete(k); err != nil {
			return fmt.Errorf("store journal prune: %w", err)
		}
	}
	if err := s.tables.Meta.Put(keyTail, bigendian.Uint64ToBytes(uint64(before))); err != nil {
		return fmt.Errorf("store write: %w", err)
	}
	return s.Commit()
}
