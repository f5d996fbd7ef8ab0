package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reader is the read-back interface to the registry contract's view
// functions. It is the single source of truth for numeric and financial
// state: the engine overwrites its derived fields from these answers and
// never accumulates amounts locally.
//
// Implementations may fail transiently; the engine retries with backoff and
// does not mark a record processed until the reads succeed.
type Reader interface {
	// RoundInfo returns the authoritative payment state of one round.
	RoundInfo(ctx context.Context, submission common.Address, request, challenge, round uint32) (*RoundInfo, error)
	// Contributions returns one contributor's authoritative per-side stake
	// within a round.
	Contributions(ctx context.Context, submission common.Address, request, challenge, round uint32, contributor common.Address) (*ContributionInfo, error)
	// ChallengeInfo returns the dispute id and ruling of a challenge slot.
	ChallengeInfo(ctx context.Context, submission common.Address, request, challenge uint32) (*ChallengeInfo, error)
	// SubmissionInfo returns the authoritative submission record.
	SubmissionInfo(ctx context.Context, submission common.Address) (*SubmissionInfo, error)
	// RequestInfo returns the authoritative request record.
	RequestInfo(ctx context.Context, submission common.Address, request uint32) (*RequestInfo, error)
	// DisputeToChallenge resolves an arbitrator's dispute id to the
	// challenged submission and challenge ordinal.
	DisputeToChallenge(ctx context.Context, arbitrator common.Address, disputeID *big.Int) (*DisputeSlot, error)
	// ArbitratorExtraData returns the contract's current arbitrator extra data.
	ArbitratorExtraData(ctx context.Context) ([]byte, error)
	// RenewalTime returns the contract's renewal window in seconds.
	RenewalTime(ctx context.Context) (uint64, error)
}

// RoundInfo mirrors getRoundInfo, reduced to the two funded sides
// (0 = requester, 1 = challenger).
type RoundInfo struct {
	Appealed   bool
	PaidFees   [2]*big.Int
	HasPaid    [2]bool
	FeeRewards *big.Int
}

// ContributionInfo mirrors getContributions, reduced to the two sides.
type ContributionInfo struct {
	Values [2]*big.Int
}

// ChallengeInfo mirrors getChallengeInfo.
type ChallengeInfo struct {
	DisputeID *big.Int
	Ruling    *big.Int
}

// SubmissionInfo mirrors getSubmissionInfo. StatusCode is the raw on-chain
// code; classification happens in the engine so out-of-domain codes survive
// to the stored entity.
type SubmissionInfo struct {
	StatusCode       uint8
	SubmissionTime   uint64
	RenewalTimestamp uint64
	Registered       bool
}

// RequestInfo mirrors getRequestInfo.
type RequestInfo struct {
	Disputed           bool
	Resolved           bool
	UltimateChallenger common.Address
	CurrentReasonCode  uint8
	NbParallelDisputes uint32
	RequesterLost      bool
}

// DisputeSlot locates the challenge an arbitrator dispute id refers to.
type DisputeSlot struct {
	Submission common.Address
	Challenge  uint32
}
