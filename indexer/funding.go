package indexer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-humanity-index/ledger"
	"github.com/rony4d/go-humanity-index/registry"
)

// latestRequest derives the key of a submission's most recent request.
func latestRequest(sub *registry.Submission, id common.Address) (common.Hash, uint32, error) {
	if sub.RequestsLength == 0 {
		return common.Hash{}, 0, missing("Request", "no requests for "+id.Hex())
	}
	ordinal := sub.RequestsLength - 1
	return registry.RequestID(id, ordinal), ordinal, nil
}

// fundSubmission indexes a top-up of the requester's deposit: it only moves
// funds into round 0 of challenge 0 of the latest request, so the round and
// contribution are re-read from chain.
func (e *Engine) fundSubmission(ctx context.Context, rec ledger.Record, args ledger.FundSubmission) error {
	sub, err := e.store.GetSubmission(args.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", args.SubmissionID)
	}
	requestID, ordinal, err := latestRequest(sub, args.SubmissionID)
	if err != nil {
		return err
	}
	roundID := registry.RoundID(registry.ChallengeID(requestID, 0), 0)
	return e.updateContribution(ctx, args.SubmissionID, ordinal, 0, 0, roundID, rec.Caller)
}

// withdrawSubmission indexes the caller withdrawing their own pending
// application: status back to None, the request resolves, and the refunded
// deposit is re-read into round 0.
func (e *Engine) withdrawSubmission(ctx context.Context, rec ledger.Record) error {
	sub, err := e.store.GetSubmission(rec.Caller)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", rec.Caller)
	}
	sub.Status = registry.StatusNone
	if err := e.store.SetSubmission(rec.Caller, sub); err != nil {
		return err
	}

	requestID, ordinal, err := latestRequest(sub, rec.Caller)
	if err != nil {
		return err
	}
	req, err := e.store.GetRequest(requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return missing("Request", requestID)
	}
	req.Resolved = true
	if err := e.store.SetRequest(requestID, req); err != nil {
		return err
	}

	roundID := registry.RoundID(registry.ChallengeID(requestID, 0), 0)
	return e.updateContribution(ctx, rec.Caller, ordinal, 0, 0, roundID, rec.Caller)
}

// executeRequest indexes the execution of an unchallenged request after the
// challenge period: the submission's authoritative record is re-read from
// chain, the request resolves, and the requester's deposit settlement is
// re-read into round 0.
func (e *Engine) executeRequest(ctx context.Context, rec ledger.Record, args ledger.ExecuteRequest) error {
	var info *ledger.SubmissionInfo
	err := e.retryRead(ctx, "getSubmissionInfo", func() error {
		var err error
		info, err = e.reader.SubmissionInfo(ctx, args.SubmissionID)
		return err
	})
	if err != nil {
		return err
	}

	sub, err := e.store.GetSubmission(args.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", args.SubmissionID)
	}
	sub.Status = registry.StatusNone
	sub.Registered = info.Registered
	sub.SubmissionTime = info.SubmissionTime
	sub.RenewalTimestamp = info.RenewalTimestamp
	if err := e.store.SetSubmission(args.SubmissionID, sub); err != nil {
		return err
	}

	requestID, ordinal, err := latestRequest(sub, args.SubmissionID)
	if err != nil {
		return err
	}
	req, err := e.store.GetRequest(requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return missing("Request", requestID)
	}
	req.Resolved = true
	if err := e.store.SetRequest(requestID, req); err != nil {
		return err
	}

	roundID := registry.RoundID(registry.ChallengeID(requestID, 0), 0)
	return e.updateContribution(ctx, args.SubmissionID, ordinal, 0, 0, roundID, req.Requester)
}

// withdrawFeesAndRewards indexes a beneficiary pulling their share out of a
// settled round; the round and contribution rows are re-read from chain.
func (e *Engine) withdrawFeesAndRewards(ctx context.Context, rec ledger.Record, args ledger.WithdrawFeesAndRewards) error {
	requestID := registry.RequestID(args.SubmissionID, args.RequestID)
	challengeID := registry.ChallengeID(requestID, args.ChallengeID)
	roundID := registry.RoundID(challengeID, args.Round)
	return e.updateContribution(ctx, args.SubmissionID, args.RequestID, args.ChallengeID, args.Round, roundID, args.Beneficiary)
}
