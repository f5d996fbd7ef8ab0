// Package registry defines the derived entity graph of the humanity
// registry: submissions, their registration/removal requests, disputes,
// appeal rounds and fee contributions, reconstructed from the contract's
// ordered call/event log.
//
// All entities are plain RLP-serializable structs. Monetary amounts are
// *big.Int and are never computed locally: they mirror the contract's
// read interface. Child-entity keys are derived, never stored pointers;
// see id.go for the derivation scheme.
package registry

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ContractKey is the key of the singleton Contract entity.
var ContractKey = []byte("0")

// Contract is the singleton snapshot of the registry contract's governance
// parameters. Governance handlers mutate it; the lifecycle handler snapshots
// arbitrator fields from it into every new request.
type Contract struct {
	Arbitrator                     common.Address
	ArbitratorExtraData            []byte
	Governor                       common.Address
	SubmissionBaseDeposit          *big.Int
	SubmissionChallengeBaseDeposit *big.Int
	// SubmissionDuration is how long a registration stays valid, in seconds.
	SubmissionDuration uint64
	// RenewalTime is the tail of SubmissionDuration during which the
	// registrant may reapply.
	RenewalTime             uint64
	ChallengePeriodDuration uint64
	RequiredNumberOfVouches uint64
	MetaEvidenceUpdates     uint64
	SharedStakeMultiplier   *big.Int
	WinnerStakeMultiplier   *big.Int
	LoserStakeMultiplier    *big.Int
	// RegistrationMetaEvidence and ClearingMetaEvidence reference the
	// current MetaEvidence entities (decimal-string ids; registration
	// updates are even, clearing updates odd).
	RegistrationMetaEvidence string
	ClearingMetaEvidence     string
}

// Submission is one candidate identity, keyed by its account address.
// Its lifecycle spans many requests; RequestsLength is the append-only
// request counter and request #k's key is derived from (address, k) before
// the counter is bumped past k, so keys are stable across re-reads.
type Submission struct {
	Status           Status
	Registered       bool
	SubmissionTime   uint64
	RenewalTimestamp uint64
	Name             string
	Bio              string
	// Vouchees lists the submissions this one has offered a vouch to,
	// in call order. Removal is by value.
	Vouchees []common.Address
	// UsedVouch is the submission currently consuming this one's vouch.
	// The zero address means the vouch is free.
	UsedVouch      common.Address
	RequestsLength uint32
}

// HasUsedVouch reports whether the submission's vouch is locked.
func (s *Submission) HasUsedVouch() bool {
	return s.UsedVouch != (common.Address{})
}

// Vouches reports whether the submission has an outstanding vouch for target.
func (s *Submission) Vouches(target common.Address) bool {
	for _, v := range s.Vouchees {
		if v == target {
			return true
		}
	}
	return false
}

// RemoveVouchee removes target from Vouchees by value, keeping order.
func (s *Submission) RemoveVouchee(target common.Address) {
	kept := s.Vouchees[:0]
	for _, v := range s.Vouchees {
		if v != target {
			kept = append(kept, v)
		}
	}
	s.Vouchees = kept
}

// Request is one registration or removal attempt for a submission.
// EvidenceLength, ChallengesLength and PenaltyIndex are append-only /
// non-decreasing counters.
type Request struct {
	Submission          common.Address
	Disputed            bool
	LastStatusChange    uint64
	Resolved            bool
	Requester           common.Address
	Arbitrator          common.Address
	ArbitratorExtraData []byte
	// Vouches holds the submissions whose vouch was resolved onto this
	// request when it moved to PendingRegistration, in scan order.
	Vouches []common.Address
	// UsedReasons records every reason this request has been challenged
	// under, in challenge order. CurrentReason is the last one.
	UsedReasons        []Reason
	CurrentReason      Reason
	NbParallelDisputes uint32
	RequesterLost      bool
	// UltimateChallenger is the challenger whose dispute prevailed.
	// The zero address means none.
	UltimateChallenger common.Address
	// PenaltyIndex is the resumable vouch-processing cursor: indices below
	// it have been visited exactly once. Bounded by len(Vouches).
	PenaltyIndex     uint32
	MetaEvidence     string
	EvidenceLength   uint32
	ChallengesLength uint32
}

// Evidence is one piece of evidence attached to a request. Immutable.
type Evidence struct {
	Request common.Hash
	URI     string
	Sender  common.Address
}

// Challenge is a dispute slot of a request. It is created with its request
// (slot 0) or lazily when a later reason is challenged; DisputeID is set
// only once the slot is actually disputed.
type Challenge struct {
	Request common.Hash
	// HasDispute guards DisputeID: RLP cannot round-trip a nil *big.Int,
	// and dispute id 0 is a valid arbitrator id.
	HasDispute bool
	DisputeID  *big.Int
	Challenger common.Address
	// DuplicateSubmission names the alleged duplicate when the challenge
	// reason is Duplicate. The zero address means not applicable.
	DuplicateSubmission common.Address
	HasRuling           bool
	Ruling              *big.Int
	RoundsLength        uint32
}

// Round is one funding cycle within a challenge. Side 0 is the requester,
// side 1 the challenger. HasPaid flips to (true,true) at most once; that
// transition is the sole trigger for allocating the next round.
type Round struct {
	Challenge  common.Hash
	PaidFees   [2]*big.Int
	HasPaid    [2]bool
	FeeRewards *big.Int
	// Contributors lists the addresses with a Contribution row in this
	// round, in first-contribution order. Contribution keys are digests of
	// (round, contributor), so this is the only way to enumerate them.
	Contributors []common.Address
}

// HasContributor reports whether addr already has a contribution row.
func (r *Round) HasContributor(addr common.Address) bool {
	for _, c := range r.Contributors {
		if c == addr {
			return true
		}
	}
	return false
}

// NewRound returns a zero-funded round for the given challenge.
func NewRound(challenge common.Hash) *Round {
	return &Round{
		Challenge:  challenge,
		PaidFees:   [2]*big.Int{new(big.Int), new(big.Int)},
		FeeRewards: new(big.Int),
	}
}

// FullyFunded reports whether both sides of the round have paid their fees.
func (r *Round) FullyFunded() bool {
	return r.HasPaid[0] && r.HasPaid[1]
}

// Contribution is one contributor's aggregated stake within a round,
// keyed by (round, contributor). Values are re-derived from the contract's
// read interface on every update, never incremented locally.
type Contribution struct {
	Round       common.Hash
	Contributor common.Address
	Values      [2]*big.Int
}

// MetaEvidence is one versioned meta-evidence document, keyed by its
// decimal update index.
type MetaEvidence struct {
	URI string
}
