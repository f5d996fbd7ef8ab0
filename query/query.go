// Package query is the read surface consumed by the presentation layer: a
// point lookup of one submission with its nested requests, challenges,
// rounds and contributions. It reads only the derived entity store; it
// never re-derives state from the ledger.
package query

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-humanity-index/registry"
	"github.com/rony4d/go-humanity-index/store"
)

// Reader serves lookups over a store. Reads observe the state as of the
// engine's last committed record.
type Reader struct {
	store *store.Store
}

func New(s *store.Store) *Reader {
	return &Reader{store: s}
}

// SubmissionView is one submission with its full nested graph.
type SubmissionView struct {
	ID               common.Address  `json:"id"`
	Status           string          `json:"status"`
	Registered       bool            `json:"registered"`
	SubmissionTime   uint64          `json:"submissionTime"`
	RenewalTimestamp uint64          `json:"renewalTimestamp"`
	Name             string          `json:"name"`
	Bio              string          `json:"bio"`
	Vouchees         []common.Address `json:"vouchees"`
	UsedVouch        *common.Address `json:"usedVouch,omitempty"`
	Requests         []RequestView   `json:"requests"`
}

type RequestView struct {
	ID                 common.Hash      `json:"id"`
	Disputed           bool             `json:"disputed"`
	Resolved           bool             `json:"resolved"`
	LastStatusChange   uint64           `json:"lastStatusChange"`
	Requester          common.Address   `json:"requester"`
	Arbitrator         common.Address   `json:"arbitrator"`
	Vouches            []common.Address `json:"vouches"`
	UsedReasons        []string         `json:"usedReasons"`
	CurrentReason      string           `json:"currentReason"`
	NbParallelDisputes uint32           `json:"nbParallelDisputes"`
	RequesterLost      bool             `json:"requesterLost"`
	UltimateChallenger *common.Address  `json:"ultimateChallenger,omitempty"`
	PenaltyIndex       uint32           `json:"penaltyIndex"`
	MetaEvidence       string           `json:"metaEvidence"`
	MetaEvidenceURI    string           `json:"metaEvidenceURI,omitempty"`
	Evidence           []EvidenceView   `json:"evidence"`
	Challenges         []ChallengeView  `json:"challenges"`
}

type EvidenceView struct {
	ID     common.Hash    `json:"id"`
	URI    string         `json:"uri"`
	Sender common.Address `json:"sender"`
}

type ChallengeView struct {
	ID                  common.Hash     `json:"id"`
	DisputeID           *big.Int        `json:"disputeID,omitempty"`
	Challenger          *common.Address `json:"challenger,omitempty"`
	DuplicateSubmission *common.Address `json:"duplicateSubmission,omitempty"`
	Ruling              *big.Int        `json:"ruling,omitempty"`
	Rounds              []RoundView     `json:"rounds"`
}

type RoundView struct {
	ID            common.Hash        `json:"id"`
	PaidFees      [2]*big.Int        `json:"paidFees"`
	HasPaid       [2]bool            `json:"hasPaid"`
	FeeRewards    *big.Int           `json:"feeRewards"`
	Contributions []ContributionView `json:"contributions"`
}

type ContributionView struct {
	ID          common.Hash    `json:"id"`
	Contributor common.Address `json:"contributor"`
	Values      [2]*big.Int    `json:"values"`
}

func optAddr(a common.Address) *common.Address {
	if a == (common.Address{}) {
		return nil
	}
	cp := a
	return &cp
}

// Submission assembles the full view of one submission, or nil if the
// address has never submitted. Child entities are reached by re-deriving
// their keys from the stored counters.
func (r *Reader) Submission(id common.Address) (*SubmissionView, error) {
	sub, err := r.store.GetSubmission(id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, nil
	}
	view := &SubmissionView{
		ID:               id,
		Status:           sub.Status.String(),
		Registered:       sub.Registered,
		SubmissionTime:   sub.SubmissionTime,
		RenewalTimestamp: sub.RenewalTimestamp,
		Name:             sub.Name,
		Bio:              sub.Bio,
		Vouchees:         sub.Vouchees,
		UsedVouch:        optAddr(sub.UsedVouch),
	}
	for i := uint32(0); i < sub.RequestsLength; i++ {
		req, err := r.request(id, i)
		if err != nil {
			return nil, err
		}
		view.Requests = append(view.Requests, *req)
	}
	return view, nil
}

func (r *Reader) request(submission common.Address, ordinal uint32) (*RequestView, error) {
	id := registry.RequestID(submission, ordinal)
	req, err := r.store.GetRequest(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("query: request #%d of %s not found", ordinal, submission.Hex())
	}
	view := &RequestView{
		ID:                 id,
		Disputed:           req.Disputed,
		Resolved:           req.Resolved,
		LastStatusChange:   req.LastStatusChange,
		Requester:          req.Requester,
		Arbitrator:         req.Arbitrator,
		Vouches:            req.Vouches,
		CurrentReason:      req.CurrentReason.String(),
		NbParallelDisputes: req.NbParallelDisputes,
		RequesterLost:      req.RequesterLost,
		UltimateChallenger: optAddr(req.UltimateChallenger),
		PenaltyIndex:       req.PenaltyIndex,
		MetaEvidence:       req.MetaEvidence,
	}
	for _, reason := range req.UsedReasons {
		view.UsedReasons = append(view.UsedReasons, reason.String())
	}
	if meta, err := r.store.GetMetaEvidence(req.MetaEvidence); err != nil {
		return nil, err
	} else if meta != nil {
		view.MetaEvidenceURI = meta.URI
	}
	for i := uint32(0); i < req.EvidenceLength; i++ {
		evidenceID := registry.EvidenceID(id, i)
		evidence, err := r.store.GetEvidence(evidenceID)
		if err != nil {
			return nil, err
		}
		if evidence == nil {
			return nil, fmt.Errorf("query: evidence #%d of request %s not found", i, id.Hex())
		}
		view.Evidence = append(view.Evidence, EvidenceView{
			ID:     evidenceID,
			URI:    evidence.URI,
			Sender: evidence.Sender,
		})
	}
	for i := uint32(0); i < req.ChallengesLength; i++ {
		challenge, err := r.challenge(id, i)
		if err != nil {
			return nil, err
		}
		view.Challenges = append(view.Challenges, *challenge)
	}
	return view, nil
}

func (r *Reader) challenge(request common.Hash, ordinal uint32) (*ChallengeView, error) {
	id := registry.ChallengeID(request, ordinal)
	challenge, err := r.store.GetChallenge(id)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return nil, fmt.Errorf("query: challenge #%d of request %s not found", ordinal, request.Hex())
	}
	view := &ChallengeView{
		ID:                  id,
		Challenger:          optAddr(challenge.Challenger),
		DuplicateSubmission: optAddr(challenge.DuplicateSubmission),
	}
	if challenge.HasDispute {
		view.DisputeID = challenge.DisputeID
	}
	if challenge.HasRuling {
		view.Ruling = challenge.Ruling
	}
	for i := uint32(0); i < challenge.RoundsLength; i++ {
		roundID := registry.RoundID(id, i)
		round, err := r.store.GetRound(roundID)
		if err != nil {
			return nil, err
		}
		if round == nil {
			return nil, fmt.Errorf("query: round #%d of challenge %s not found", i, id.Hex())
		}
		roundView := RoundView{
			ID:         roundID,
			PaidFees:   round.PaidFees,
			HasPaid:    round.HasPaid,
			FeeRewards: round.FeeRewards,
		}
		for _, contributor := range round.Contributors {
			contributionID := registry.ContributionID(roundID, contributor)
			contribution, err := r.store.GetContribution(contributionID)
			if err != nil {
				return nil, err
			}
			if contribution == nil {
				return nil, fmt.Errorf("query: contribution of %s in round %s not found", contributor.Hex(), roundID.Hex())
			}
			roundView.Contributions = append(roundView.Contributions, ContributionView{
				ID:          contributionID,
				Contributor: contributor,
				Values:      contribution.Values,
			})
		}
		view.Rounds = append(view.Rounds, roundView)
	}
	return view, nil
}
