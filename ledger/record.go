// Package ledger models the indexer's two chain-facing interfaces: the
// inbound feed of decoded call/event records, and the read-back interface
// to the registry contract's authoritative view functions.
//
// Records arrive in strict ledger order (block number, then intra-block
// execution order), batched per block. The engine never sees a record of
// block N+1 before every record of block N.
package ledger

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
)

// Block is the block metadata a record is tagged with.
type Block struct {
	Number idx.Block
	// Time is the block timestamp in seconds.
	Time uint64
}

// Record is one decoded contract invocation or emitted event.
type Record struct {
	// Caller is the transaction sender (for Rule records, the arbitrator).
	Caller common.Address
	// Contract is the registry contract the record belongs to.
	Contract common.Address
	Block    Block
	// Args carries the record's decoded inputs; its concrete type selects
	// the handler.
	Args Args
}

// Args is implemented by every per-kind argument struct.
type Args interface {
	// Kind names the call/event for logs and errors.
	Kind() string
}

// Events.

type MetaEvidenceEvent struct {
	MetaEvidenceID *big.Int
	Evidence       string
}

type ArbitratorCompleteEvent struct {
	Arbitrator                     common.Address
	Governor                       common.Address
	SubmissionBaseDeposit          *big.Int
	SubmissionChallengeBaseDeposit *big.Int
	SubmissionDuration             uint64
	ChallengePeriodDuration        uint64
	RequiredNumberOfVouches        uint64
	SharedStakeMultiplier          *big.Int
	WinnerStakeMultiplier          *big.Int
	LoserStakeMultiplier           *big.Int
}

// Governance calls.

type ChangeSubmissionBaseDeposit struct{ SubmissionBaseDeposit *big.Int }

type ChangeSubmissionChallengeBaseDeposit struct{ SubmissionChallengeBaseDeposit *big.Int }

type ChangeSubmissionDuration struct{ SubmissionDuration uint64 }

type ChangeRenewalTime struct{ RenewalTime uint64 }

type ChangeChallengePeriodDuration struct{ ChallengePeriodDuration uint64 }

type ChangeRequiredNumberOfVouches struct{ RequiredNumberOfVouches uint64 }

type ChangeSharedStakeMultiplier struct{ SharedStakeMultiplier *big.Int }

type ChangeWinnerStakeMultiplier struct{ WinnerStakeMultiplier *big.Int }

type ChangeLoserStakeMultiplier struct{ LoserStakeMultiplier *big.Int }

type ChangeGovernor struct{ Governor common.Address }

type ChangeMetaEvidence struct {
	RegistrationMetaEvidence string
	ClearingMetaEvidence     string
}

type ChangeArbitrator struct {
	Arbitrator          common.Address
	ArbitratorExtraData []byte
}

// Submission lifecycle calls.

type AddSubmission struct {
	Evidence string
	Name     string
	Bio      string
}

type AddSubmissionManually struct {
	SubmissionID common.Address
	Evidence     string
	Name         string
	Bio          string
}

type RemoveSubmissionManually struct{ SubmissionID common.Address }

type ReapplySubmission struct{ Evidence string }

type RemoveSubmission struct {
	SubmissionID common.Address
	Evidence     string
}

type WithdrawSubmission struct{}

type FundSubmission struct{ SubmissionID common.Address }

type ExecuteRequest struct{ SubmissionID common.Address }

// Vouching calls.

type AddVouch struct{ SubmissionID common.Address }

type RemoveVouch struct{ SubmissionID common.Address }

type ChangeStateToPending struct {
	SubmissionID common.Address
	Vouches      []common.Address
}

type ProcessVouches struct {
	SubmissionID common.Address
	RequestID    uint32
	Iterations   uint32
}

// Dispute calls.

type ChallengeRequest struct {
	SubmissionID common.Address
	ReasonCode   uint8
	DuplicateID  common.Address
	Evidence     string
}

type FundAppeal struct {
	SubmissionID common.Address
	ChallengeID  uint32
}

type WithdrawFeesAndRewards struct {
	Beneficiary  common.Address
	SubmissionID common.Address
	RequestID    uint32
	ChallengeID  uint32
	Round        uint32
}

type Rule struct {
	DisputeID *big.Int
	Ruling    *big.Int
}

func (MetaEvidenceEvent) Kind() string                    { return "MetaEvidence" }
func (ArbitratorCompleteEvent) Kind() string              { return "ArbitratorComplete" }
func (ChangeSubmissionBaseDeposit) Kind() string          { return "changeSubmissionBaseDeposit" }
func (ChangeSubmissionChallengeBaseDeposit) Kind() string { return "changeSubmissionChallengeBaseDeposit" }
func (ChangeSubmissionDuration) Kind() string             { return "changeSubmissionDuration" }
func (ChangeRenewalTime) Kind() string                    { return "changeRenewalTime" }
func (ChangeChallengePeriodDuration) Kind() string        { return "changeChallengePeriodDuration" }
func (ChangeRequiredNumberOfVouches) Kind() string        { return "changeRequiredNumberOfVouches" }
func (ChangeSharedStakeMultiplier) Kind() string          { return "changeSharedStakeMultiplier" }
func (ChangeWinnerStakeMultiplier) Kind() string          { return "changeWinnerStakeMultiplier" }
func (ChangeLoserStakeMultiplier) Kind() string           { return "changeLoserStakeMultiplier" }
func (ChangeGovernor) Kind() string                       { return "changeGovernor" }
func (ChangeMetaEvidence) Kind() string                   { return "changeMetaEvidence" }
func (ChangeArbitrator) Kind() string                     { return "changeArbitrator" }
func (AddSubmission) Kind() string                        { return "addSubmission" }
func (AddSubmissionManually) Kind() string                { return "addSubmissionManually" }
func (RemoveSubmissionManually) Kind() string             { return "removeSubmissionManually" }
func (ReapplySubmission) Kind() string                    { return "reapplySubmission" }
func (RemoveSubmission) Kind() string                     { return "removeSubmission" }
func (WithdrawSubmission) Kind() string                   { return "withdrawSubmission" }
func (FundSubmission) Kind() string                       { return "fundSubmission" }
func (ExecuteRequest) Kind() string                       { return "executeRequest" }
func (AddVouch) Kind() string                             { return "addVouch" }
func (RemoveVouch) Kind() string                          { return "removeVouch" }
func (ChangeStateToPending) Kind() string                 { return "changeStateToPending" }
func (ProcessVouches) Kind() string                       { return "processVouches" }
func (ChallengeRequest) Kind() string                     { return "challengeRequest" }
func (FundAppeal) Kind() string                           { return "fundAppeal" }
func (WithdrawFeesAndRewards) Kind() string               { return "withdrawFeesAndRewards" }
func (Rule) Kind() string                                 { return "rule" }
