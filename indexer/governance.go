package indexer

import (
	"context"
	"strconv"

	"github.com/rony4d/go-humanity-index/ledger"
	"github.com/rony4d/go-humanity-index/registry"
)

// MetaEvidence entity ids are the contract's update indices as decimal
// strings; registration documents have even indices, clearing documents odd
// ones.

// metaEvidence records an emitted meta-evidence document and repoints the
// matching contract reference. Before the contract's deployment record the
// document is stored but there is no contract row to repoint yet.
func (e *Engine) metaEvidence(c *registry.Contract, args ledger.MetaEvidenceEvent) error {
	id := args.MetaEvidenceID.String()
	if err := e.store.SetMetaEvidence(id, &registry.MetaEvidence{URI: args.Evidence}); err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	c.MetaEvidenceUpdates++
	if args.MetaEvidenceID.Bit(0) == 0 {
		c.RegistrationMetaEvidence = id
	} else {
		c.ClearingMetaEvidence = id
	}
	return e.store.SetContract(c)
}

// arbitratorComplete indexes the contract's deployment-completion event and
// creates the singleton contract snapshot. The arbitrator extra data and
// renewal window are not in the event and are read back from the contract.
func (e *Engine) arbitratorComplete(ctx context.Context, args ledger.ArbitratorCompleteEvent) error {
	var extraData []byte
	err := e.retryRead(ctx, "arbitratorExtraData", func() error {
		var err error
		extraData, err = e.reader.ArbitratorExtraData(ctx)
		return err
	})
	if err != nil {
		return err
	}
	var renewalTime uint64
	err = e.retryRead(ctx, "renewalTime", func() error {
		var err error
		renewalTime, err = e.reader.RenewalTime(ctx)
		return err
	})
	if err != nil {
		return err
	}

	return e.store.SetContract(&registry.Contract{
		Arbitrator:                     args.Arbitrator,
		ArbitratorExtraData:            extraData,
		Governor:                       args.Governor,
		SubmissionBaseDeposit:          args.SubmissionBaseDeposit,
		SubmissionChallengeBaseDeposit: args.SubmissionChallengeBaseDeposit,
		SubmissionDuration:             args.SubmissionDuration,
		RenewalTime:                    renewalTime,
		ChallengePeriodDuration:        args.ChallengePeriodDuration,
		RequiredNumberOfVouches:        args.RequiredNumberOfVouches,
		SharedStakeMultiplier:          args.SharedStakeMultiplier,
		WinnerStakeMultiplier:          args.WinnerStakeMultiplier,
		LoserStakeMultiplier:           args.LoserStakeMultiplier,
		RegistrationMetaEvidence:       "0",
		ClearingMetaEvidence:           "1",
	})
}

// changeMetaEvidence stores the new registration and clearing documents
// under the next even/odd index pair and repoints the contract.
func (e *Engine) changeMetaEvidence(c *registry.Contract, args ledger.ChangeMetaEvidence) error {
	c.MetaEvidenceUpdates++

	registrationID := strconv.FormatUint(2*c.MetaEvidenceUpdates, 10)
	clearingID := strconv.FormatUint(2*c.MetaEvidenceUpdates+1, 10)
	if err := e.store.SetMetaEvidence(registrationID, &registry.MetaEvidence{URI: args.RegistrationMetaEvidence}); err != nil {
		return err
	}
	if err := e.store.SetMetaEvidence(clearingID, &registry.MetaEvidence{URI: args.ClearingMetaEvidence}); err != nil {
		return err
	}

	c.RegistrationMetaEvidence = registrationID
	c.ClearingMetaEvidence = clearingID
	return e.store.SetContract(c)
}
