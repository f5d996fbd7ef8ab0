package indexer

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-humanity-index/ledger"
	"github.com/rony4d/go-humanity-index/registry"
)

// addVouch records the caller offering a vouch. Callers without a
// submission of their own are ignored: the contract accepts the call but
// the vouch can never become valid.
func (e *Engine) addVouch(rec ledger.Record, args ledger.AddVouch) error {
	sub, err := e.store.GetSubmission(rec.Caller)
	if err != nil || sub == nil {
		return err
	}
	sub.Vouchees = append(sub.Vouchees, args.SubmissionID)
	return e.store.SetSubmission(rec.Caller, sub)
}

// removeVouch withdraws an offered vouch. Removal is by value: appends from
// other submissions interleave only at record granularity, never within one
// submission's list.
func (e *Engine) removeVouch(rec ledger.Record, args ledger.RemoveVouch) error {
	sub, err := e.store.GetSubmission(rec.Caller)
	if err != nil || sub == nil {
		return err
	}
	sub.RemoveVouchee(args.SubmissionID)
	return e.store.SetSubmission(rec.Caller, sub)
}

// changeStateToPending moves a submission from Vouching to
// PendingRegistration and resolves which of the presented vouches actually
// count: the voucher's vouch must be free, the voucher registered and not
// expired, and the vouch must name this submission. Counted vouchers get
// their vouch locked onto this submission.
func (e *Engine) changeStateToPending(c *registry.Contract, rec ledger.Record, args ledger.ChangeStateToPending) error {
	sub, err := e.store.GetSubmission(args.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return missing("Submission", args.SubmissionID)
	}
	sub.Status = registry.StatusPendingRegistration
	if err := e.store.SetSubmission(args.SubmissionID, sub); err != nil {
		return err
	}

	requestID, _, err := latestRequest(sub, args.SubmissionID)
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
	req.LastStatusChange = rec.Block.Time

	for _, voucherID := range args.Vouches {
		voucher, err := e.store.GetSubmission(voucherID)
		if err != nil {
			return err
		}
		if voucher == nil {
			return missing("Submission (voucher)", voucherID)
		}
		if voucher.HasUsedVouch() ||
			!voucher.Registered ||
			rec.Block.Time-voucher.SubmissionTime > c.SubmissionDuration ||
			!voucher.Vouches(args.SubmissionID) {
			continue
		}
		req.Vouches = append(req.Vouches, voucherID)
		voucher.UsedVouch = args.SubmissionID
		if err := e.store.SetSubmission(voucherID, voucher); err != nil {
			return err
		}
	}
	return e.store.SetRequest(requestID, req)
}

// processVouches handles the bounded-iteration vouch settlement call.
// PenaltyIndex is the resumable cursor: this visits exactly the indices
// [PenaltyIndex, PenaltyIndex+actual) and advances the cursor, so repeated
// calls never reprocess an index and never run past the vouch list.
//
// Each visited voucher gets its vouch freed. If the request was lost to an
// ultimate challenger over a Duplicate or DoesNotExist reason, vouchers who
// backed it are penalized: their registration is revoked, and if their own
// candidacy is still in flight (Vouching or PendingRegistration) their
// latest request is marked requesterLost.
func (e *Engine) processVouches(args ledger.ProcessVouches) error {
	requestID := registry.RequestID(args.SubmissionID, args.RequestID)
	req, err := e.store.GetRequest(requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return missing("Request", requestID)
	}

	total := uint32(len(req.Vouches))
	start := req.PenaltyIndex
	actual := args.Iterations
	if start+actual > total || start+actual < start {
		actual = total - start
	}
	end := start + actual
	req.PenaltyIndex = end
	if err := e.store.SetRequest(requestID, req); err != nil {
		return err
	}

	var lastReason registry.Reason
	if len(req.UsedReasons) > 0 {
		lastReason = req.UsedReasons[len(req.UsedReasons)-1]
	}
	penalize := req.UltimateChallenger != (common.Address{}) &&
		(lastReason == registry.ReasonDuplicate || lastReason == registry.ReasonDoesNotExist)

	for i := start; i < end; i++ {
		voucherID := req.Vouches[i]
		voucher, err := e.store.GetSubmission(voucherID)
		if err != nil {
			return err
		}
		if voucher == nil {
			return missing("Submission (voucher)", voucherID)
		}
		voucher.UsedVouch = common.Address{}

		if penalize {
			if voucher.Status == registry.StatusVouching || voucher.Status == registry.StatusPendingRegistration {
				voucherRequestID, _, err := latestRequest(voucher, voucherID)
				if err != nil {
					return err
				}
				voucherRequest, err := e.store.GetRequest(voucherRequestID)
				if err != nil {
					return err
				}
				if voucherRequest == nil {
					return missing("Request", voucherRequestID)
				}
				voucherRequest.RequesterLost = true
				if err := e.store.SetRequest(voucherRequestID, voucherRequest); err != nil {
					return err
				}
			}
			voucher.Registered = false
		}

		if err := e.store.SetSubmission(voucherID, voucher); err != nil {
			return err
		}
	}
	return nil
}
