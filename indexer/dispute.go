package indexer

import (
	"context"
	"math/big"

	"github.com/rony4d/go-humanity-index/ledger"
	"github.com/rony4d/go-humanity-index/registry"
)

// challengeRequest indexes a new dispute against the latest request.
//
// The nominal challenge slot is ChallengesLength-1; if it already carries a
// dispute (parallel Duplicate challenges), the first free ordinal at or
// after it is allocated instead and ChallengesLength grows to cover it.
// The dispute id is authoritative chain state and is read back rather than
// taken from the call.
func (e *Engine) challengeRequest(ctx context.Context, rec ledger.Record, args ledger.ChallengeRequest) error {
	reason := registry.ReasonFromCode(args.ReasonCode)

	sub, err := e.store.GetSubmission(args.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", args.SubmissionID)
	}
	requestID, requestOrdinal, err := latestRequest(sub, args.SubmissionID)
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

	req.Disputed = true
	req.UsedReasons = append(req.UsedReasons, reason)
	req.CurrentReason = reason
	req.NbParallelDisputes++

	evidenceOrdinal := req.EvidenceLength
	req.EvidenceLength++
	if err := e.store.SetEvidence(registry.EvidenceID(requestID, evidenceOrdinal), &registry.Evidence{
		Request: requestID,
		URI:     args.Evidence,
		Sender:  rec.Caller,
	}); err != nil {
		return err
	}

	// First free slot at or after the nominal one. The scan is bounded:
	// every ordinal below ChallengesLength exists, so it terminates at
	// ChallengesLength at the latest.
	challengeOrdinal := req.ChallengesLength - 1
	var challenge *registry.Challenge
	for {
		challenge, err = e.store.GetChallenge(registry.ChallengeID(requestID, challengeOrdinal))
		if err != nil {
			return err
		}
		if challenge == nil {
			challenge = &registry.Challenge{
				Request:   requestID,
				DisputeID: new(big.Int),
				Ruling:    new(big.Int),
			}
			break
		}
		if !challenge.HasDispute {
			break
		}
		challengeOrdinal++
	}
	if challengeOrdinal >= req.ChallengesLength {
		req.ChallengesLength = challengeOrdinal + 1
	}
	if err := e.store.SetRequest(requestID, req); err != nil {
		return err
	}

	var info *ledger.ChallengeInfo
	err = e.retryRead(ctx, "getChallengeInfo", func() error {
		var err error
		info, err = e.reader.ChallengeInfo(ctx, args.SubmissionID, requestOrdinal, challengeOrdinal)
		return err
	})
	if err != nil {
		return err
	}

	challengeID := registry.ChallengeID(requestID, challengeOrdinal)
	challenge.Request = requestID
	challenge.HasDispute = true
	challenge.DisputeID = info.DisputeID
	challenge.Challenger = rec.Caller
	if reason == registry.ReasonDuplicate {
		challenge.DuplicateSubmission = args.DuplicateID
	}
	challenge.RoundsLength = 2
	if err := e.store.SetChallenge(challengeID, challenge); err != nil {
		return err
	}

	// A lazily-allocated slot has no round 0 yet; the contested round must
	// exist before its contribution is re-read.
	contestedID := registry.RoundID(challengeID, 0)
	contested, err := e.store.GetRound(contestedID)
	if err != nil {
		return err
	}
	if contested == nil {
		if err := e.store.SetRound(contestedID, registry.NewRound(challengeID)); err != nil {
			return err
		}
	}
	if err := e.store.SetRound(registry.RoundID(challengeID, 1), registry.NewRound(challengeID)); err != nil {
		return err
	}

	return e.updateContribution(ctx, args.SubmissionID, requestOrdinal, challengeOrdinal, 0, contestedID, rec.Caller)
}

// fundAppeal indexes appeal funding into the challenge's current (last)
// round. When the update leaves both sides fully paid, the appeal is funded
// and the next round is allocated zeroed; this is the only way a challenge
// grows rounds.
func (e *Engine) fundAppeal(ctx context.Context, rec ledger.Record, args ledger.FundAppeal) error {
	sub, err := e.store.GetSubmission(args.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", args.SubmissionID)
	}
	requestID, requestOrdinal, err := latestRequest(sub, args.SubmissionID)
	if err != nil {
		return err
	}
	challengeID := registry.ChallengeID(requestID, args.ChallengeID)
	challenge, err := e.store.GetChallenge(challengeID)
	if err != nil {
		return err
	}
	if challenge == nil {
		return missing("Challenge", challengeID)
	}

	roundOrdinal := challenge.RoundsLength - 1
	roundID := registry.RoundID(challengeID, roundOrdinal)
	if err := e.updateContribution(ctx, args.SubmissionID, requestOrdinal, args.ChallengeID, roundOrdinal, roundID, rec.Caller); err != nil {
		return err
	}

	round, err := e.store.GetRound(roundID)
	if err != nil {
		return err
	}
	if round == nil {
		return missing("Round", roundID)
	}
	if !round.FullyFunded() {
		return nil
	}
	next := challenge.RoundsLength
	challenge.RoundsLength++
	if err := e.store.SetChallenge(challengeID, challenge); err != nil {
		return err
	}
	return e.store.SetRound(registry.RoundID(challengeID, next), registry.NewRound(challengeID))
}

// rule indexes the arbitrator's ruling callback. The caller is the
// arbitrator; its dispute id is resolved back to the challenged submission
// and challenge slot, then the submission's and request's authoritative
// fields are re-read from chain and the ruling is recorded on the
// challenge.
func (e *Engine) rule(ctx context.Context, rec ledger.Record, args ledger.Rule) error {
	var slot *ledger.DisputeSlot
	err := e.retryRead(ctx, "arbitratorDisputeIDToChallenge", func() error {
		var err error
		slot, err = e.reader.DisputeToChallenge(ctx, rec.Caller, args.DisputeID)
		return err
	})
	if err != nil {
		return err
	}
	var subInfo *ledger.SubmissionInfo
	err = e.retryRead(ctx, "getSubmissionInfo", func() error {
		var err error
		subInfo, err = e.reader.SubmissionInfo(ctx, slot.Submission)
		return err
	})
	if err != nil {
		return err
	}

	sub, err := e.store.GetSubmission(slot.Submission)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", slot.Submission)
	}
	sub.Status = registry.StatusFromCode(subInfo.StatusCode)
	sub.Registered = subInfo.Registered
	sub.SubmissionTime = subInfo.SubmissionTime
	sub.RenewalTimestamp = subInfo.RenewalTimestamp
	if err := e.store.SetSubmission(slot.Submission, sub); err != nil {
		return err
	}

	requestID, requestOrdinal, err := latestRequest(sub, slot.Submission)
	if err != nil {
		return err
	}
	var reqInfo *ledger.RequestInfo
	err = e.retryRead(ctx, "getRequestInfo", func() error {
		var err error
		reqInfo, err = e.reader.RequestInfo(ctx, slot.Submission, requestOrdinal)
		return err
	})
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
	req.Disputed = reqInfo.Disputed
	req.LastStatusChange = rec.Block.Time
	req.Resolved = reqInfo.Resolved
	req.CurrentReason = registry.ReasonFromCode(reqInfo.CurrentReasonCode)
	req.NbParallelDisputes = reqInfo.NbParallelDisputes
	req.UltimateChallenger = reqInfo.UltimateChallenger
	req.RequesterLost = reqInfo.RequesterLost
	if err := e.store.SetRequest(requestID, req); err != nil {
		return err
	}

	var chInfo *ledger.ChallengeInfo
	err = e.retryRead(ctx, "getChallengeInfo", func() error {
		var err error
		chInfo, err = e.reader.ChallengeInfo(ctx, slot.Submission, requestOrdinal, slot.Challenge)
		return err
	})
	if err != nil {
		return err
	}
	challengeID := registry.ChallengeID(requestID, slot.Challenge)
	challenge, err := e.store.GetChallenge(challengeID)
	if err != nil {
		return err
	}
	if challenge == nil {
		return missing("Challenge", challengeID)
	}
	challenge.HasRuling = true
	challenge.Ruling = chInfo.Ruling
	return e.store.SetChallenge(challengeID, challenge)
}
