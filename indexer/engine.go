// Package indexer is the mapping engine: it consumes the contract's
// call/event records in ledger order and deterministically mutates the
// derived entity graph.
//
// Processing is single-threaded and record-at-a-time by design. Records of
// later blocks read counters written by earlier ones, so the dispatch order
// is load-bearing; nothing here may be parallelized without proving the
// records independent. Every record is applied as one atomic store unit:
// either all of its entity writes commit together with the checkpoint, or
// none do.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-humanity-index/ledger"
	"github.com/rony4d/go-humanity-index/registry"
	"github.com/rony4d/go-humanity-index/store"
)

// ErrMissingEntity reports a handler looking up an entity the ledger's
// ordering guarantees should have created already. It is fatal for the
// record: either the feed is out of order or a reorg was not reconciled,
// and an operator has to intervene.
var ErrMissingEntity = errors.New("indexer: required entity missing")

func missing(kind string, key interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrMissingEntity, kind, key)
}

// Engine applies ledger records to the entity store.
type Engine struct {
	store  *store.Store
	reader ledger.Reader
	log    *logrus.Entry

	// maxReadRetries bounds the backoff loop around read-back calls.
	maxReadRetries uint64

	halted bool
}

// New creates an engine over the given store and read-back interface.
func New(s *store.Store, r ledger.Reader, log *logrus.Logger) *Engine {
	return &Engine{
		store:          s,
		reader:         r,
		log:            log.WithField("module", "indexer"),
		maxReadRetries: 8,
	}
}

// Halted reports whether a fatal inconsistency stopped processing. The
// store still serves the last consistent snapshot.
func (e *Engine) Halted() bool {
	return e.halted
}

// ProcessBlock applies every record of one finalized block, in order.
// Records already acknowledged by the checkpoint are skipped, so replaying
// a block after a crash resumes exactly after the last durable record.
// A non-nil error means processing halted; the store holds the state as of
// the last committed record.
func (e *Engine) ProcessBlock(ctx context.Context, b ledger.Block, records []ledger.Record) error {
	pos, err := e.store.Checkpoint()
	if err != nil {
		return e.halt(err)
	}
	if b.Number < pos.Block {
		return nil // already processed, feed is replaying
	}
	start := uint32(0)
	if b.Number == pos.Block {
		if pos.Records >= uint32(len(records)) {
			return nil
		}
		start = pos.Records
	}

	if err := e.store.BeginBlock(b.Number); err != nil {
		return e.halt(err)
	}
	for i := start; i < uint32(len(records)); i++ {
		rec := records[i]
		if err := e.apply(ctx, rec); err != nil {
			e.store.Drop()
			return e.halt(fmt.Errorf("block %d record %d (%s): %w", b.Number, i, rec.Args.Kind(), err))
		}
		if err := e.store.SetCheckpoint(store.Position{Block: b.Number, Records: i + 1}); err != nil {
			e.store.Drop()
			return e.halt(err)
		}
		if err := e.store.Commit(); err != nil {
			e.store.Drop()
			return e.halt(err)
		}
		mRecords.Inc()
	}
	if err := e.store.FinishBlock(b.Number, uint32(len(records))); err != nil {
		return e.halt(err)
	}
	if err := e.store.Commit(); err != nil {
		return e.halt(err)
	}
	mLastBlock.Set(float64(b.Number))
	return nil
}

// Rollback reverts the graph to its state as of block `to` after the
// ledger retracted later blocks. The canonical replacement records are then
// re-processed through ProcessBlock from the fork point.
func (e *Engine) Rollback(to ledger.Block) error {
	if err := e.store.Rollback(to.Number); err != nil {
		return e.halt(fmt.Errorf("rollback to block %d: %w", to.Number, err))
	}
	mRollbacks.Inc()
	e.log.WithField("block", to.Number).Info("rolled back to fork point")
	return nil
}

func (e *Engine) halt(err error) error {
	e.halted = true
	mHalted.Set(1)
	e.log.WithError(err).Error("indexing halted")
	return err
}

// apply routes one record to its handler. No handler invokes another,
// except the lifecycle and dispute handlers calling the contribution
// updater as a subroutine.
func (e *Engine) apply(ctx context.Context, rec ledger.Record) error {
	e.log.WithFields(logrus.Fields{
		"kind":  rec.Args.Kind(),
		"block": rec.Block.Number,
	}).Debug("applying record")

	// The singleton contract snapshot is loaded once per record and handed
	// to the handlers explicitly.
	c, err := e.store.GetContract()
	if err != nil {
		return err
	}
	needContract := func() (*registry.Contract, error) {
		if c == nil {
			return nil, missing("Contract", string(registry.ContractKey))
		}
		return c, nil
	}

	switch args := rec.Args.(type) {
	case ledger.MetaEvidenceEvent:
		return e.metaEvidence(c, args)
	case ledger.ArbitratorCompleteEvent:
		return e.arbitratorComplete(ctx, args)

	case ledger.ChangeSubmissionBaseDeposit:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.SubmissionBaseDeposit = args.SubmissionBaseDeposit
		return e.store.SetContract(c)
	case ledger.ChangeSubmissionChallengeBaseDeposit:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.SubmissionChallengeBaseDeposit = args.SubmissionChallengeBaseDeposit
		return e.store.SetContract(c)
	case ledger.ChangeSubmissionDuration:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.SubmissionDuration = args.SubmissionDuration
		return e.store.SetContract(c)
	case ledger.ChangeRenewalTime:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.RenewalTime = args.RenewalTime
		return e.store.SetContract(c)
	case ledger.ChangeChallengePeriodDuration:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.ChallengePeriodDuration = args.ChallengePeriodDuration
		return e.store.SetContract(c)
	case ledger.ChangeRequiredNumberOfVouches:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.RequiredNumberOfVouches = args.RequiredNumberOfVouches
		return e.store.SetContract(c)
	case ledger.ChangeSharedStakeMultiplier:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.SharedStakeMultiplier = args.SharedStakeMultiplier
		return e.store.SetContract(c)
	case ledger.ChangeWinnerStakeMultiplier:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.WinnerStakeMultiplier = args.WinnerStakeMultiplier
		return e.store.SetContract(c)
	case ledger.ChangeLoserStakeMultiplier:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.LoserStakeMultiplier = args.LoserStakeMultiplier
		return e.store.SetContract(c)
	case ledger.ChangeGovernor:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.Governor = args.Governor
		return e.store.SetContract(c)
	case ledger.ChangeMetaEvidence:
		c, err := needContract()
		if err != nil {
			return err
		}
		return e.changeMetaEvidence(c, args)
	case ledger.ChangeArbitrator:
		c, err := needContract()
		if err != nil {
			return err
		}
		c.Arbitrator = args.Arbitrator
		c.ArbitratorExtraData = args.ArbitratorExtraData
		return e.store.SetContract(c)

	case ledger.AddSubmission:
		c, err := needContract()
		if err != nil {
			return err
		}
		return e.addSubmission(ctx, c, rec, args)
	case ledger.AddSubmissionManually:
		c, err := needContract()
		if err != nil {
			return err
		}
		return e.addSubmissionManually(c, rec, args)
	case ledger.RemoveSubmissionManually:
		return e.removeSubmissionManually(args)
	case ledger.ReapplySubmission:
		c, err := needContract()
		if err != nil {
			return err
		}
		return e.reapplySubmission(ctx, c, rec, args)
	case ledger.RemoveSubmission:
		c, err := needContract()
		if err != nil {
			return err
		}
		return e.removeSubmission(ctx, c, rec, args)
	case ledger.WithdrawSubmission:
		return e.withdrawSubmission(ctx, rec)
	case ledger.FundSubmission:
		return e.fundSubmission(ctx, rec, args)
	case ledger.ExecuteRequest:
		return e.executeRequest(ctx, rec, args)

	case ledger.AddVouch:
		return e.addVouch(rec, args)
	case ledger.RemoveVouch:
		return e.removeVouch(rec, args)
	case ledger.ChangeStateToPending:
		c, err := needContract()
		if err != nil {
			return err
		}
		return e.changeStateToPending(c, rec, args)
	case ledger.ProcessVouches:
		return e.processVouches(args)

	case ledger.ChallengeRequest:
		return e.challengeRequest(ctx, rec, args)
	case ledger.FundAppeal:
		return e.fundAppeal(ctx, rec, args)
	case ledger.WithdrawFeesAndRewards:
		return e.withdrawFeesAndRewards(ctx, rec, args)
	case ledger.Rule:
		return e.rule(ctx, rec, args)

	default:
		return fmt.Errorf("indexer: unknown record kind %q", rec.Args.Kind())
	}
}

// retryRead runs one read-back call with exponential backoff. Transient
// node failures are retried without side effects: nothing is written until
// the read succeeds, so the record stays unprocessed.
func (e *Engine) retryRead(ctx context.Context, what string, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.maxReadRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil {
			e.log.WithError(err).WithField("read", what).Warn("chain read failed, retrying")
		}
		return err
	}, bo)
}
