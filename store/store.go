// Package store persists the derived entity graph in a key-value database.
//
// Layout: one kvdb table per entity type, all carved out of a single
// underlying store wrapped with flushable. Mutations accumulate in the
// flushable cache and hit the disk only on Commit, so every processed
// ledger record is applied as one atomic unit; Drop discards a
// half-applied record after a handler failure.
//
// Every entity write is also journaled per block (see journal.go), which
// makes the state recoverable to "as of block N" when the ledger retracts
// blocks.
package store

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/flushable"
	"github.com/Fantom-foundation/lachesis-base/kvdb/table"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-humanity-index/registry"
)

// Table prefixes. Journal entries reference tables by these bytes, so they
// must never be reassigned once a database exists.
const (
	tContract     = 'C'
	tSubmission   = 's'
	tRequest      = 'r'
	tEvidence     = 'e'
	tChallenge    = 'h'
	tRound        = 'n'
	tContribution = 'o'
	tMetaEvidence = 'm'
	tJournal      = 'j'
	tMeta         = 'x'
)

// Store is the entity store. It is not safe for concurrent use: the engine
// processes one record at a time by design.
type Store struct {
	db *flushable.Flushable

	tables struct {
		Contract     kvdb.Store
		Submission   kvdb.Store
		Request      kvdb.Store
		Evidence     kvdb.Store
		Challenge    kvdb.Store
		Round        kvdb.Store
		Contribution kvdb.Store
		MetaEvidence kvdb.Store
		Journal      kvdb.Store
		Meta         kvdb.Store
	}
	byPrefix map[byte]kvdb.Store

	// journaling state of the block currently being processed
	blk idx.Block
	seq uint32

	log *logrus.Entry
}

// New wraps db into an entity store. The caller keeps ownership of db and
// closes it after the store is no longer used.
func New(db kvdb.Store, log *logrus.Logger) *Store {
	s := &Store{
		db:  flushable.Wrap(db),
		log: log.WithField("module", "store"),
	}
	s.tables.Contract = table.New(s.db, []byte{tContract})
	s.tables.Submission = table.New(s.db, []byte{tSubmission})
	s.tables.Request = table.New(s.db, []byte{tRequest})
	s.tables.Evidence = table.New(s.db, []byte{tEvidence})
	s.tables.Challenge = table.New(s.db, []byte{tChallenge})
	s.tables.Round = table.New(s.db, []byte{tRound})
	s.tables.Contribution = table.New(s.db, []byte{tContribution})
	s.tables.MetaEvidence = table.New(s.db, []byte{tMetaEvidence})
	s.tables.Journal = table.New(s.db, []byte{tJournal})
	s.tables.Meta = table.New(s.db, []byte{tMeta})
	s.byPrefix = map[byte]kvdb.Store{
		tContract:     s.tables.Contract,
		tSubmission:   s.tables.Submission,
		tRequest:      s.tables.Request,
		tEvidence:     s.tables.Evidence,
		tChallenge:    s.tables.Challenge,
		tRound:        s.tables.Round,
		tContribution: s.tables.Contribution,
		tMetaEvidence: s.tables.MetaEvidence,
	}
	return s
}

// Commit durably flushes every mutation applied since the previous Commit.
func (s *Store) Commit() error {
	return s.db.Flush()
}

// Drop discards every mutation applied since the previous Commit.
func (s *Store) Drop() {
	s.db.DropNotFlushed()
}

// get loads and decodes one entity. Absent keys return (false, nil):
// whether absence is fatal is the caller's call.
func (s *Store) get(t kvdb.Store, key []byte, out interface{}) (bool, error) {
	b, err := t.Get(key)
	if err != nil {
		return false, fmt.Errorf("store read: %w", err)
	}
	if b == nil {
		return false, nil
	}
	if err := rlp.DecodeBytes(b, out); err != nil {
		return false, fmt.Errorf("store decode: %w", err)
	}
	return true, nil
}

// put journals the key's previous value under the current block, then
// encodes and writes the entity.
func (s *Store) put(prefix byte, key []byte, v interface{}) error {
	enc, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("store encode: %w", err)
	}
	t := s.byPrefix[prefix]
	if err := s.journalPrev(prefix, t, key); err != nil {
		return err
	}
	if err := t.Put(key, enc); err != nil {
		return fmt.Errorf("store write: %w", err)
	}
	return nil
}

// GetContract loads the singleton contract snapshot, or nil before the
// contract's deployment record has been indexed.
func (s *Store) GetContract() (*registry.Contract, error) {
	c := new(registry.Contract)
	ok, err := s.get(s.tables.Contract, registry.ContractKey, c)
	if err != nil || !ok {
		return nil, err
	}
	return c, nil
}

func (s *Store) SetContract(c *registry.Contract) error {
	return s.put(tContract, registry.ContractKey, c)
}

func (s *Store) GetSubmission(id common.Address) (*registry.Submission, error) {
	sub := new(registry.Submission)
	ok, err := s.get(s.tables.Submission, id.Bytes(), sub)
	if err != nil || !ok {
		return nil, err
	}
	return sub, nil
}

func (s *Store) SetSubmission(id common.Address, sub *registry.Submission) error {
	return s.put(tSubmission, id.Bytes(), sub)
}

func (s *Store) GetRequest(id common.Hash) (*registry.Request, error) {
	r := new(registry.Request)
	ok, err := s.get(s.tables.Request, id.Bytes(), r)
	if err != nil || !ok {
		return nil, err
	}
	return r, nil
}

func (s *Store) SetRequest(id common.Hash, r *registry.Request) error {
	return s.put(tRequest, id.Bytes(), r)
}

func (s *Store) GetEvidence(id common.Hash) (*registry.Evidence, error) {
	e := new(registry.Evidence)
	ok, err := s.get(s.tables.Evidence, id.Bytes(), e)
	if err != nil || !ok {
		return nil, err
	}
	return e, nil
}

func (s *Store) SetEvidence(id common.Hash, e *registry.Evidence) error {
	return s.put(tEvidence, id.Bytes(), e)
}

func (s *Store) GetChallenge(id common.Hash) (*registry.Challenge, error) {
	c := new(registry.Challenge)
	ok, err := s.get(s.tables.Challenge, id.Bytes(), c)
	if err != nil || !ok {
		return nil, err
	}
	return c, nil
}

func (s *Store) SetChallenge(id common.Hash, c *registry.Challenge) error {
	return s.put(tChallenge, id.Bytes(), c)
}

func (s *Store) GetRound(id common.Hash) (*registry.Round, error) {
	r := new(registry.Round)
	ok, err := s.get(s.tables.Round, id.Bytes(), r)
	if err != nil || !ok {
		return nil, err
	}
	return r, nil
}

func (s *Store) SetRound(id common.Hash, r *registry.Round) error {
	return s.put(tRound, id.Bytes(), r)
}

func (s *Store) GetContribution(id common.Hash) (*registry.Contribution, error) {
	c := new(registry.Contribution)
	ok, err := s.get(s.tables.Contribution, id.Bytes(), c)
	if err != nil || !ok {
		return nil, err
	}
	return c, nil
}

func (s *Store) SetContribution(id common.Hash, c *registry.Contribution) error {
	return s.put(tContribution, id.Bytes(), c)
}

func (s *Store) GetMetaEvidence(id string) (*registry.MetaEvidence, error) {
	m := new(registry.MetaEvidence)
	ok, err := s.get(s.tables.MetaEvidence, []byte(id), m)
	if err != nil || !ok {
		return nil, err
	}
	return m, nil
}

func (s *Store) SetMetaEvidence(id string, m *registry.MetaEvidence) error {
	return s.put(tMetaEvidence, []byte(id), m)
}
