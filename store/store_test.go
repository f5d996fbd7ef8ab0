package store

import (
	"io/ioutil"
	"math/big"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-humanity-index/registry"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetOutput(ioutil.Discard)
	return New(memorydb.New(), log)
}

func TestGetAbsentReturnsNil(t *testing.T) {
	require := require.New(t)
	s := newTestStore(t)

	c, err := s.GetContract()
	require.NoError(err)
	require.Nil(c)

	sub, err := s.GetSubmission(common.HexToAddress("0x01"))
	require.NoError(err)
	require.Nil(sub)

	r, err := s.GetRequest(common.HexToHash("0x02"))
	require.NoError(err)
	require.Nil(r)

	m, err := s.GetMetaEvidence("0")
	require.NoError(err)
	require.Nil(m)
}

func TestEntityRoundTrip(t *testing.T) {
	require := require.New(t)
	s := newTestStore(t)
	require.NoError(s.BeginBlock(1))

	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	voucher := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	sub := &registry.Submission{
		Status:         registry.StatusVouching,
		SubmissionTime: 1234,
		Name:           "alice",
		Vouchees:       []common.Address{voucher},
		RequestsLength: 1,
	}
	require.NoError(s.SetSubmission(addr, sub))

	reqID := registry.RequestID(addr, 0)
	req := &registry.Request{
		Submission:          addr,
		Requester:           addr,
		Arbitrator:          voucher,
		ArbitratorExtraData: []byte{0xde, 0xad},
		Vouches:             []common.Address{voucher},
		UsedReasons:         []registry.Reason{registry.ReasonDuplicate},
		CurrentReason:       registry.ReasonDuplicate,
		MetaEvidence:        "0",
		EvidenceLength:      1,
		ChallengesLength:    1,
	}
	require.NoError(s.SetRequest(reqID, req))

	chID := registry.ChallengeID(reqID, 0)
	ch := &registry.Challenge{
		Request:      reqID,
		HasDispute:   true,
		DisputeID:    big.NewInt(42),
		Challenger:   voucher,
		HasRuling:    false,
		Ruling:       big.NewInt(0),
		RoundsLength: 2,
	}
	require.NoError(s.SetChallenge(chID, ch))

	rdID := registry.RoundID(chID, 0)
	rd := registry.NewRound(chID)
	rd.PaidFees = [2]*big.Int{big.NewInt(10), big.NewInt(20)}
	rd.HasPaid = [2]bool{true, false}
	rd.FeeRewards = big.NewInt(5)
	rd.Contributors = []common.Address{voucher}
	require.NoError(s.SetRound(rdID, rd))

	require.NoError(s.Commit())

	gotSub, err := s.GetSubmission(addr)
	require.NoError(err)
	require.Equal(sub, gotSub)

	gotReq, err := s.GetRequest(reqID)
	require.NoError(err)
	require.Equal(req, gotReq)

	gotCh, err := s.GetChallenge(chID)
	require.NoError(err)
	require.Equal(ch, gotCh)

	gotRd, err := s.GetRound(rdID)
	require.NoError(err)
	require.Equal(rd, gotRd)
}

func TestDropDiscardsUncommitted(t *testing.T) {
	require := require.New(t)
	s := newTestStore(t)
	require.NoError(s.BeginBlock(1))

	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	// committed baseline
	require.NoError(s.SetSubmission(addr, &registry.Submission{Status: registry.StatusVouching}))
	require.NoError(s.Commit())

	// half-applied mutation
	require.NoError(s.SetSubmission(addr, &registry.Submission{Status: registry.StatusPendingRegistration}))
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	require.NoError(s.SetSubmission(other, &registry.Submission{Status: registry.StatusVouching}))
	s.Drop()

	got, err := s.GetSubmission(addr)
	require.NoError(err)
	require.Equal(registry.StatusVouching, got.Status)

	gone, err := s.GetSubmission(other)
	require.NoError(err)
	require.Nil(gone)
}

func TestContractSingleton(t *testing.T) {
	require := require.New(t)
	s := newTestStore(t)
	require.NoError(s.BeginBlock(1))

	c := &registry.Contract{
		Arbitrator:                     common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		ArbitratorExtraData:            []byte{0x01, 0x02},
		Governor:                       common.HexToAddress("0x00000000000000000000000000000000000000dd"),
		SubmissionBaseDeposit:          big.NewInt(1000),
		SubmissionChallengeBaseDeposit: big.NewInt(2000),
		SubmissionDuration:             3600,
		RenewalTime:                    600,
		ChallengePeriodDuration:        900,
		RequiredNumberOfVouches:        2,
		SharedStakeMultiplier:          big.NewInt(10000),
		WinnerStakeMultiplier:          big.NewInt(5000),
		LoserStakeMultiplier:           big.NewInt(20000),
		RegistrationMetaEvidence:       "0",
		ClearingMetaEvidence:           "1",
	}
	require.NoError(s.SetContract(c))
	require.NoError(s.Commit())

	got, err := s.GetContract()
	require.NoError(err)
	require.Equal(c, got)
}
