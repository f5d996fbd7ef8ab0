package indexer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-humanity-index/ledger"
	"github.com/rony4d/go-humanity-index/registry"
)

// updateContribution re-reads a round's authoritative payment state and a
// contributor's authoritative per-side stake from the contract, then
// overwrites the Round's paid/fee fields and the (round, contributor)
// Contribution row. It never adds to stored amounts: re-running it with
// unchanged chain state is a no-op.
//
// Called after every record that can move funds into a round: submission
// funding, challenge, appeal funding, withdrawal, request execution and
// fee/reward withdrawal.
func (e *Engine) updateContribution(ctx context.Context, submission common.Address, request, challenge, round uint32, roundID common.Hash, contributor common.Address) error {
	var info *ledger.RoundInfo
	err := e.retryRead(ctx, "getRoundInfo", func() error {
		var err error
		info, err = e.reader.RoundInfo(ctx, submission, request, challenge, round)
		return err
	})
	if err != nil {
		return err
	}
	var stake *ledger.ContributionInfo
	err = e.retryRead(ctx, "getContributions", func() error {
		var err error
		stake, err = e.reader.Contributions(ctx, submission, request, challenge, round, contributor)
		return err
	})
	if err != nil {
		return err
	}

	rnd, err := e.store.GetRound(roundID)
	if err != nil {
		return err
	}
	if rnd == nil {
		return missing("Round", roundID)
	}
	rnd.PaidFees = info.PaidFees
	rnd.HasPaid = info.HasPaid
	rnd.FeeRewards = info.FeeRewards
	if !rnd.HasContributor(contributor) {
		rnd.Contributors = append(rnd.Contributors, contributor)
	}
	if err := e.store.SetRound(roundID, rnd); err != nil {
		return err
	}

	id := registry.ContributionID(roundID, contributor)
	contribution, err := e.store.GetContribution(id)
	if err != nil {
		return err
	}
	if contribution == nil {
		contribution = &registry.Contribution{Round: roundID, Contributor: contributor}
	}
	contribution.Values = stake.Values
	return e.store.SetContribution(id, contribution)
}
