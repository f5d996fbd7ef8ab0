package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// registryABI covers only the view functions the indexer reads back.
const registryABI = `[
{"constant":true,"inputs":[{"name":"_submissionID","type":"address"},{"name":"_requestID","type":"uint256"},{"name":"_challengeID","type":"uint256"},{"name":"_round","type":"uint256"}],"name":"getRoundInfo","outputs":[{"name":"appealed","type":"bool"},{"name":"paidFees","type":"uint256[3]"},{"name":"hasPaid","type":"bool[3]"},{"name":"feeRewards","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"_submissionID","type":"address"},{"name":"_requestID","type":"uint256"},{"name":"_challengeID","type":"uint256"},{"name":"_round","type":"uint256"},{"name":"_contributor","type":"address"}],"name":"getContributions","outputs":[{"name":"contributions","type":"uint256[3]"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"_submissionID","type":"address"},{"name":"_requestID","type":"uint256"},{"name":"_challengeID","type":"uint256"}],"name":"getChallengeInfo","outputs":[{"name":"numberOfRounds","type":"uint256"},{"name":"disputeID","type":"uint256"},{"name":"ruling","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"_submissionID","type":"address"}],"name":"getSubmissionInfo","outputs":[{"name":"status","type":"uint8"},{"name":"submissionTime","type":"uint64"},{"name":"renewalTimestamp","type":"uint64"},{"name":"index","type":"uint64"},{"name":"registered","type":"bool"},{"name":"hasVouched","type":"bool"},{"name":"numberOfRequests","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"_submissionID","type":"address"},{"name":"_requestID","type":"uint256"}],"name":"getRequestInfo","outputs":[{"name":"disputed","type":"bool"},{"name":"lastStatusChange","type":"uint64"},{"name":"resolved","type":"bool"},{"name":"requester","type":"address"},{"name":"ultimateChallenger","type":"address"},{"name":"usedReasons","type":"uint8"},{"name":"currentReason","type":"uint8"},{"name":"nbParallelDisputes","type":"uint16"},{"name":"nbChallenges","type":"uint16"},{"name":"arbitratorDataID","type":"uint16"},{"name":"requesterLost","type":"bool"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"_arbitrator","type":"address"},{"name":"_disputeID","type":"uint256"}],"name":"arbitratorDisputeIDToChallenge","outputs":[{"name":"challengeID","type":"uint256"},{"name":"requestID","type":"uint256"},{"name":"submissionID","type":"address"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"arbitratorExtraData","outputs":[{"name":"","type":"bytes"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"renewalTime","outputs":[{"name":"","type":"uint64"}],"payable":false,"stateMutability":"view","type":"function"}
]`

var registryABIParsed abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		panic("ledger: bad registry ABI: " + err.Error())
	}
	registryABIParsed = parsed
}

// EthReader implements Reader against an Ethereum JSON-RPC endpoint,
// querying the registry contract's latest state.
type EthReader struct {
	client   *ethclient.Client
	contract common.Address
}

// NewEthReader wraps an existing RPC client.
func NewEthReader(client *ethclient.Client, contract common.Address) *EthReader {
	return &EthReader{client: client, contract: contract}
}

// DialEthReader connects to url and reads the contract at addr.
func DialEthReader(url string, contract common.Address) (*EthReader, error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", url, err)
	}
	return NewEthReader(client, contract), nil
}

func (r *EthReader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := registryABIParsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: pack %s: %w", method, err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: call %s: %w", method, err)
	}
	res, err := registryABIParsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("ledger: unpack %s: %w", method, err)
	}
	return res, nil
}

func ord(v uint32) *big.Int {
	return new(big.Int).SetUint64(uint64(v))
}

func (r *EthReader) RoundInfo(ctx context.Context, submission common.Address, request, challenge, round uint32) (*RoundInfo, error) {
	out, err := r.call(ctx, "getRoundInfo", submission, ord(request), ord(challenge), ord(round))
	if err != nil {
		return nil, err
	}
	paid := out[1].([3]*big.Int)
	hasPaid := out[2].([3]bool)
	// Index 0 of the on-chain arrays is the unused "no side" slot.
	return &RoundInfo{
		Appealed:   out[0].(bool),
		PaidFees:   [2]*big.Int{paid[1], paid[2]},
		HasPaid:    [2]bool{hasPaid[1], hasPaid[2]},
		FeeRewards: out[3].(*big.Int),
	}, nil
}

func (r *EthReader) Contributions(ctx context.Context, submission common.Address, request, challenge, round uint32, contributor common.Address) (*ContributionInfo, error) {
	out, err := r.call(ctx, "getContributions", submission, ord(request), ord(challenge), ord(round), contributor)
	if err != nil {
		return nil, err
	}
	values := out[0].([3]*big.Int)
	return &ContributionInfo{Values: [2]*big.Int{values[1], values[2]}}, nil
}

func (r *EthReader) ChallengeInfo(ctx context.Context, submission common.Address, request, challenge uint32) (*ChallengeInfo, error) {
	out, err := r.call(ctx, "getChallengeInfo", submission, ord(request), ord(challenge))
	if err != nil {
		return nil, err
	}
	return &ChallengeInfo{
		DisputeID: out[1].(*big.Int),
		Ruling:    out[2].(*big.Int),
	}, nil
}

func (r *EthReader) SubmissionInfo(ctx context.Context, submission common.Address) (*SubmissionInfo, error) {
	out, err := r.call(ctx, "getSubmissionInfo", submission)
	if err != nil {
		return nil, err
	}
	return &SubmissionInfo{
		StatusCode:       out[0].(uint8),
		SubmissionTime:   out[1].(uint64),
		RenewalTimestamp: out[2].(uint64),
		Registered:       out[4].(bool),
	}, nil
}

func (r *EthReader) RequestInfo(ctx context.Context, submission common.Address, request uint32) (*RequestInfo, error) {
	out, err := r.call(ctx, "getRequestInfo", submission, ord(request))
	if err != nil {
		return nil, err
	}
	return &RequestInfo{
		Disputed:           out[0].(bool),
		Resolved:           out[2].(bool),
		UltimateChallenger: out[4].(common.Address),
		CurrentReasonCode:  out[6].(uint8),
		NbParallelDisputes: uint32(out[7].(uint16)),
		RequesterLost:      out[10].(bool),
	}, nil
}

func (r *EthReader) DisputeToChallenge(ctx context.Context, arbitrator common.Address, disputeID *big.Int) (*DisputeSlot, error) {
	out, err := r.call(ctx, "arbitratorDisputeIDToChallenge", arbitrator, disputeID)
	if err != nil {
		return nil, err
	}
	return &DisputeSlot{
		Challenge:  uint32(out[0].(*big.Int).Uint64()),
		Submission: out[2].(common.Address),
	}, nil
}

func (r *EthReader) ArbitratorExtraData(ctx context.Context) ([]byte, error) {
	out, err := r.call(ctx, "arbitratorExtraData")
	if err != nil {
		return nil, err
	}
	return out[0].([]byte), nil
}

func (r *EthReader) RenewalTime(ctx context.Context) (uint64, error) {
	out, err := r.call(ctx, "renewalTime")
	if err != nil {
		return 0, err
	}
	return out[0].(uint64), nil
}
