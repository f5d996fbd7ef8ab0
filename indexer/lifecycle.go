package indexer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-humanity-index/ledger"
	"github.com/rony4d/go-humanity-index/registry"
)

// requestStatusChange opens a new request for a submission whose status the
// caller has just set and saved. It derives the request key from the
// pre-increment RequestsLength, bumps the counter on the submission first,
// then cascades: Request, Evidence #0, Challenge #0, Round #0 (zeroed), and
// finally updates the requester's initial deposit contribution into Round #0.
//
// The meta-evidence reference is chosen by the submission's current status:
// PendingRemoval requests reference the clearing document, everything else
// the registration one.
func (e *Engine) requestStatusChange(ctx context.Context, c *registry.Contract, submissionID common.Address, timestamp uint64, sender common.Address, evidenceURI string) error {
	sub, err := e.store.GetSubmission(submissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", submissionID)
	}

	ordinal := sub.RequestsLength
	requestID := registry.RequestID(submissionID, ordinal)
	sub.RequestsLength++
	if err := e.store.SetSubmission(submissionID, sub); err != nil {
		return err
	}

	metaEvidence := c.RegistrationMetaEvidence
	if sub.Status == registry.StatusPendingRemoval {
		metaEvidence = c.ClearingMetaEvidence
	}
	req := &registry.Request{
		Submission:          submissionID,
		LastStatusChange:    timestamp,
		Requester:           sender,
		Arbitrator:          c.Arbitrator,
		ArbitratorExtraData: c.ArbitratorExtraData,
		CurrentReason:       registry.ReasonNone,
		MetaEvidence:        metaEvidence,
		EvidenceLength:      1,
		ChallengesLength:    1,
	}
	if err := e.store.SetRequest(requestID, req); err != nil {
		return err
	}

	if err := e.store.SetEvidence(registry.EvidenceID(requestID, 0), &registry.Evidence{
		Request: requestID,
		URI:     evidenceURI,
		Sender:  sender,
	}); err != nil {
		return err
	}

	challengeID := registry.ChallengeID(requestID, 0)
	if err := e.store.SetChallenge(challengeID, &registry.Challenge{
		Request:      requestID,
		DisputeID:    new(big.Int),
		Ruling:       new(big.Int),
		RoundsLength: 1,
	}); err != nil {
		return err
	}

	roundID := registry.RoundID(challengeID, 0)
	if err := e.store.SetRound(roundID, registry.NewRound(challengeID)); err != nil {
		return err
	}

	return e.updateContribution(ctx, submissionID, ordinal, 0, 0, roundID, sender)
}

// addSubmission handles a first-ever or repeated application by the caller.
func (e *Engine) addSubmission(ctx context.Context, c *registry.Contract, rec ledger.Record, args ledger.AddSubmission) error {
	sub, err := e.store.GetSubmission(rec.Caller)
	if err != nil {
		return err
	}
	if sub == nil {
		sub = &registry.Submission{
			Name: args.Name,
			Bio:  args.Bio,
		}
	}
	sub.Status = registry.StatusVouching
	if err := e.store.SetSubmission(rec.Caller, sub); err != nil {
		return err
	}
	return e.requestStatusChange(ctx, c, rec.Caller, rec.Block.Time, rec.Caller, args.Evidence)
}

// reapplySubmission handles a renewal application by a registered caller.
func (e *Engine) reapplySubmission(ctx context.Context, c *registry.Contract, rec ledger.Record, args ledger.ReapplySubmission) error {
	sub, err := e.store.GetSubmission(rec.Caller)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", rec.Caller)
	}
	sub.Status = registry.StatusVouching
	if err := e.store.SetSubmission(rec.Caller, sub); err != nil {
		return err
	}
	return e.requestStatusChange(ctx, c, rec.Caller, rec.Block.Time, rec.Caller, args.Evidence)
}

// removeSubmission handles a removal request against a registered submission.
func (e *Engine) removeSubmission(ctx context.Context, c *registry.Contract, rec ledger.Record, args ledger.RemoveSubmission) error {
	sub, err := e.store.GetSubmission(args.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", args.SubmissionID)
	}
	sub.Status = registry.StatusPendingRemoval
	if err := e.store.SetSubmission(args.SubmissionID, sub); err != nil {
		return err
	}
	return e.requestStatusChange(ctx, c, args.SubmissionID, rec.Block.Time, rec.Caller, args.Evidence)
}

// addSubmissionManually registers a submission by governance fiat: no
// vouching, no deposit, the request is born resolved.
func (e *Engine) addSubmissionManually(c *registry.Contract, rec ledger.Record, args ledger.AddSubmissionManually) error {
	sub := &registry.Submission{
		Status:           registry.StatusNone,
		Registered:       true,
		SubmissionTime:   rec.Block.Time,
		RenewalTimestamp: rec.Block.Time + (c.SubmissionDuration - c.RenewalTime),
		Name:             args.Name,
		Bio:              args.Bio,
		RequestsLength:   1,
	}
	if err := e.store.SetSubmission(args.SubmissionID, sub); err != nil {
		return err
	}

	requestID := registry.RequestID(args.SubmissionID, 0)
	if err := e.store.SetRequest(requestID, &registry.Request{
		Submission:          args.SubmissionID,
		LastStatusChange:    rec.Block.Time,
		Resolved:            true,
		Requester:           rec.Caller,
		Arbitrator:          c.Arbitrator,
		ArbitratorExtraData: c.ArbitratorExtraData,
		CurrentReason:       registry.ReasonNone,
		MetaEvidence:        c.RegistrationMetaEvidence,
		EvidenceLength:      1,
		ChallengesLength:    1,
	}); err != nil {
		return err
	}

	if err := e.store.SetEvidence(registry.EvidenceID(requestID, 0), &registry.Evidence{
		Request: requestID,
		URI:     args.Evidence,
		Sender:  rec.Caller,
	}); err != nil {
		return err
	}

	challengeID := registry.ChallengeID(requestID, 0)
	if err := e.store.SetChallenge(challengeID, &registry.Challenge{
		Request:      requestID,
		DisputeID:    new(big.Int),
		Ruling:       new(big.Int),
		RoundsLength: 1,
	}); err != nil {
		return err
	}
	return e.store.SetRound(registry.RoundID(challengeID, 0), registry.NewRound(challengeID))
}

// removeSubmissionManually strips a submission's registration by governance
// fiat.
func (e *Engine) removeSubmissionManually(args ledger.RemoveSubmissionManually) error {
	sub, err := e.store.GetSubmission(args.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", args.SubmissionID)
	}
	sub.Registered = false
	return e.store.SetSubmission(args.SubmissionID, sub)
}
