package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"math/big"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-humanity-index/ledger"
	"github.com/rony4d/go-humanity-index/registry"
	"github.com/rony4d/go-humanity-index/store"
)

var (
	deployer   = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	governor   = common.HexToAddress("0x0000000000000000000000000000000000000901")
	arbitrator = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	alice      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000002")
	carol      = common.HexToAddress("0x0000000000000000000000000000000000000003")
	dave       = common.HexToAddress("0x0000000000000000000000000000000000000004")
	eve        = common.HexToAddress("0x0000000000000000000000000000000000000005")
)

// fakeReader serves canned answers for the contract's view functions.
// Unset entries fall back to zero-valued answers, except dispute lookups
// which must be prepared by the test.
type fakeReader struct {
	rounds   map[string]*ledger.RoundInfo
	stakes   map[string]*ledger.ContributionInfo
	chinfos  map[string]*ledger.ChallengeInfo
	subinfos map[common.Address]*ledger.SubmissionInfo
	reqinfos map[string]*ledger.RequestInfo
	disputes map[string]*ledger.DisputeSlot

	extraData   []byte
	renewalTime uint64

	// failures injects this many transient errors before answers succeed
	failures int
	calls    int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		rounds:      map[string]*ledger.RoundInfo{},
		stakes:      map[string]*ledger.ContributionInfo{},
		chinfos:     map[string]*ledger.ChallengeInfo{},
		subinfos:    map[common.Address]*ledger.SubmissionInfo{},
		reqinfos:    map[string]*ledger.RequestInfo{},
		disputes:    map[string]*ledger.DisputeSlot{},
		extraData:   []byte{0x08, 0x15},
		renewalTime: 600,
	}
}

func roundKey(sub common.Address, req, ch, rd uint32) string {
	return fmt.Sprintf("%s/%d/%d/%d", sub.Hex(), req, ch, rd)
}

func stakeKey(sub common.Address, req, ch, rd uint32, contributor common.Address) string {
	return roundKey(sub, req, ch, rd) + "/" + contributor.Hex()
}

func challengeKey(sub common.Address, req, ch uint32) string {
	return fmt.Sprintf("%s/%d/%d", sub.Hex(), req, ch)
}

func disputeKey(arb common.Address, id *big.Int) string {
	return arb.Hex() + "/" + id.String()
}

func (f *fakeReader) transient() error {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("node unavailable")
	}
	return nil
}

func (f *fakeReader) RoundInfo(_ context.Context, sub common.Address, req, ch, rd uint32) (*ledger.RoundInfo, error) {
	if err := f.transient(); err != nil {
		return nil, err
	}
	if info, ok := f.rounds[roundKey(sub, req, ch, rd)]; ok {
		return info, nil
	}
	return &ledger.RoundInfo{
		PaidFees:   [2]*big.Int{new(big.Int), new(big.Int)},
		FeeRewards: new(big.Int),
	}, nil
}

func (f *fakeReader) Contributions(_ context.Context, sub common.Address, req, ch, rd uint32, contributor common.Address) (*ledger.ContributionInfo, error) {
	if err := f.transient(); err != nil {
		return nil, err
	}
	if info, ok := f.stakes[stakeKey(sub, req, ch, rd, contributor)]; ok {
		return info, nil
	}
	return &ledger.ContributionInfo{Values: [2]*big.Int{new(big.Int), new(big.Int)}}, nil
}

func (f *fakeReader) ChallengeInfo(_ context.Context, sub common.Address, req, ch uint32) (*ledger.ChallengeInfo, error) {
	if err := f.transient(); err != nil {
		return nil, err
	}
	if info, ok := f.chinfos[challengeKey(sub, req, ch)]; ok {
		return info, nil
	}
	return &ledger.ChallengeInfo{DisputeID: new(big.Int), Ruling: new(big.Int)}, nil
}

func (f *fakeReader) SubmissionInfo(_ context.Context, sub common.Address) (*ledger.SubmissionInfo, error) {
	if err := f.transient(); err != nil {
		return nil, err
	}
	if info, ok := f.subinfos[sub]; ok {
		return info, nil
	}
	return &ledger.SubmissionInfo{}, nil
}

func (f *fakeReader) RequestInfo(_ context.Context, sub common.Address, req uint32) (*ledger.RequestInfo, error) {
	if err := f.transient(); err != nil {
		return nil, err
	}
	if info, ok := f.reqinfos[fmt.Sprintf("%s/%d", sub.Hex(), req)]; ok {
		return info, nil
	}
	return &ledger.RequestInfo{}, nil
}

func (f *fakeReader) DisputeToChallenge(_ context.Context, arb common.Address, id *big.Int) (*ledger.DisputeSlot, error) {
	if err := f.transient(); err != nil {
		return nil, err
	}
	slot, ok := f.disputes[disputeKey(arb, id)]
	if !ok {
		return nil, fmt.Errorf("unknown dispute %s of arbitrator %s", id, arb.Hex())
	}
	return slot, nil
}

func (f *fakeReader) ArbitratorExtraData(_ context.Context) ([]byte, error) {
	if err := f.transient(); err != nil {
		return nil, err
	}
	return f.extraData, nil
}

func (f *fakeReader) RenewalTime(_ context.Context) (uint64, error) {
	if err := f.transient(); err != nil {
		return 0, err
	}
	return f.renewalTime, nil
}

// testEnv drives an engine over an in-memory store, stamping records with
// consecutive blocks at 15s intervals.
type testEnv struct {
	t      *testing.T
	engine *Engine
	store  *store.Store
	reader *fakeReader

	blk idx.Block
}

const genesisTime = uint64(1700000000)

func newEnv(t *testing.T) *testEnv {
	log := logrus.New()
	log.SetOutput(ioutil.Discard)
	s := store.New(memorydb.New(), log)
	r := newFakeReader()
	return &testEnv{
		t:      t,
		engine: New(s, r, log),
		store:  s,
		reader: r,
	}
}

func (env *testEnv) nextBlock() ledger.Block {
	env.blk++
	return ledger.Block{Number: env.blk, Time: genesisTime + uint64(env.blk)*15}
}

func (env *testEnv) processErr(recs ...ledger.Record) (ledger.Block, error) {
	b := env.nextBlock()
	for i := range recs {
		recs[i].Block = b
	}
	return b, env.engine.ProcessBlock(context.Background(), b, recs)
}

func (env *testEnv) process(recs ...ledger.Record) ledger.Block {
	b, err := env.processErr(recs...)
	require.NoError(env.t, err)
	return b
}

func call(caller common.Address, args ledger.Args) ledger.Record {
	return ledger.Record{Caller: caller, Args: args}
}

// bootstrap indexes the deployment sequence: both initial meta-evidence
// documents, then the completion event.
func (env *testEnv) bootstrap() {
	env.process(
		call(deployer, ledger.MetaEvidenceEvent{MetaEvidenceID: big.NewInt(0), Evidence: "/registration.json"}),
		call(deployer, ledger.MetaEvidenceEvent{MetaEvidenceID: big.NewInt(1), Evidence: "/clearing.json"}),
		call(deployer, ledger.ArbitratorCompleteEvent{
			Arbitrator:                     arbitrator,
			Governor:                       governor,
			SubmissionBaseDeposit:          big.NewInt(100),
			SubmissionChallengeBaseDeposit: big.NewInt(200),
			SubmissionDuration:             31536000,
			ChallengePeriodDuration:        300,
			RequiredNumberOfVouches:        2,
			SharedStakeMultiplier:          big.NewInt(5000),
			WinnerStakeMultiplier:          big.NewInt(5000),
			LoserStakeMultiplier:           big.NewInt(10000),
		}),
	)
}

// registerVoucher short-circuits a registered submission into existence
// through the governance path.
func (env *testEnv) registerVoucher(id common.Address) {
	env.process(call(governor, ledger.AddSubmissionManually{
		SubmissionID: id,
		Evidence:     "/evidence.json",
		Name:         "voucher",
	}))
}

func TestBootstrapCreatesContract(t *testing.T) {
	require := require.New(t)
	env := newEnv(t)
	env.bootstrap()

	c, err := env.store.GetContract()
	require.NoError(err)
	require.NotNil(c)
	require.Equal(arbitrator, c.Arbitrator)
	require.Equal(env.reader.extraData, c.ArbitratorExtraData)
	require.Equal(governor, c.Governor)
	require.Equal(big.NewInt(100), c.SubmissionBaseDeposit)
	require.Equal(uint64(31536000), c.SubmissionDuration)
	require.Equal(env.reader.renewalTime, c.RenewalTime)
	require.Equal(uint64(300), c.ChallengePeriodDuration)
	require.Equal("0", c.RegistrationMetaEvidence)
	require.Equal("1", c.ClearingMetaEvidence)

	reg, err := env.store.GetMetaEvidence("0")
	require.NoError(err)
	require.NotNil(reg)
	require.Equal("/registration.json", reg.URI)

	clr, err := env.store.GetMetaEvidence("1")
	require.NoError(err)
	require.NotNil(clr)
	require.Equal("/clearing.json", clr.URI)
}

func TestGovernanceUpdates(t *testing.T) {
	require := require.New(t)
	env := newEnv(t)
	env.bootstrap()

	newGov := common.HexToAddress("0x0000000000000000000000000000000000000902")
	env.process(
		call(governor, ledger.ChangeGovernor{Governor: newGov}),
		call(newGov, ledger.ChangeSubmissionDuration{SubmissionDuration: 1000}),
		call(newGov, ledger.ChangeRenewalTime{RenewalTime: 100}),
		call(newGov, ledger.ChangeSubmissionBaseDeposit{SubmissionBaseDeposit: big.NewInt(777)}),
		call(newGov, ledger.ChangeRequiredNumberOfVouches{RequiredNumberOfVouches: 5}),
		call(newGov, ledger.ChangeWinnerStakeMultiplier{WinnerStakeMultiplier: big.NewInt(123)}),
	)

	c, err := env.store.GetContract()
	require.NoError(err)
	require.Equal(newGov, c.Governor)
	require.Equal(uint64(1000), c.SubmissionDuration)
	require.Equal(uint64(100), c.RenewalTime)
	require.Equal(big.NewInt(777), c.SubmissionBaseDeposit)
	require.Equal(uint64(5), c.RequiredNumberOfVouches)
	require.Equal(big.NewInt(123), c.WinnerStakeMultiplier)
}

func TestChangeMetaEvidenceRotatesDocumentPair(t *testing.T) {
	require := require.New(t)
	env := newEnv(t)
	env.bootstrap()

	env.process(call(governor, ledger.ChangeMetaEvidence{
		RegistrationMetaEvidence: "/registration-v2.json",
		ClearingMetaEvidence:     "/clearing-v2.json",
	}))

	c, err := env.store.GetContract()
	require.NoError(err)
	require.Equal(uint64(1), c.MetaEvidenceUpdates)
	require.Equal("2", c.RegistrationMetaEvidence)
	require.Equal("3", c.ClearingMetaEvidence)

	reg, err := env.store.GetMetaEvidence("2")
	require.NoError(err)
	require.Equal("/registration-v2.json", reg.URI)
	clr, err := env.store.GetMetaEvidence("3")
	require.NoError(err)
	require.Equal("/clearing-v2.json", clr.URI)
}

func TestGovernanceBeforeDeploymentHalts(t *testing.T) {
	require := require.New(t)
	env := newEnv(t)

	_, err := env.processErr(call(governor, ledger.ChangeGovernor{Governor: governor}))
	require.ErrorIs(err, ErrMissingEntity)
	require.True(env.engine.Halted())
}

func TestCheckpointSkipsProcessedRecords(t *testing.T) {
	require := require.New(t)
	env := newEnv(t)
	env.bootstrap()

	b := env.nextBlock()
	recs := []ledger.Record{
		call(governor, ledger.ChangeSubmissionDuration{SubmissionDuration: 100}),
		call(governor, ledger.ChangeRenewalTime{RenewalTime: 10}),
	}
	for i := range recs {
		recs[i].Block = b
	}
	require.NoError(env.engine.ProcessBlock(context.Background(), b, recs))

	// the feed replays the same block with one extra record; the two
	// acknowledged ones must be skipped even though their payload changed
	replay := []ledger.Record{
		call(governor, ledger.ChangeSubmissionDuration{SubmissionDuration: 999}),
		call(governor, ledger.ChangeRenewalTime{RenewalTime: 999}),
		call(governor, ledger.ChangeRequiredNumberOfVouches{RequiredNumberOfVouches: 7}),
	}
	for i := range replay {
		replay[i].Block = b
	}
	require.NoError(env.engine.ProcessBlock(context.Background(), b, replay))

	c, err := env.store.GetContract()
	require.NoError(err)
	require.Equal(uint64(100), c.SubmissionDuration)
	require.Equal(uint64(10), c.RenewalTime)
	require.Equal(uint64(7), c.RequiredNumberOfVouches)

	pos, err := env.store.Checkpoint()
	require.NoError(err)
	require.Equal(store.Position{Block: b.Number, Records: 3}, pos)

	// replaying an older block entirely is a no-op
	require.NoError(env.engine.ProcessBlock(context.Background(),
		ledger.Block{Number: 1, Time: genesisTime},
		[]ledger.Record{call(governor, ledger.ChangeRenewalTime{RenewalTime: 1})}))
	c, err = env.store.GetContract()
	require.NoError(err)
	require.Equal(uint64(10), c.RenewalTime)
}

func TestHaltKeepsCommittedPrefix(t *testing.T) {
	require := require.New(t)
	env := newEnv(t)
	env.bootstrap()

	b, err := env.processErr(
		call(governor, ledger.ChangeRenewalTime{RenewalTime: 42}),
		call(alice, ledger.ReapplySubmission{Evidence: "/e.json"}), // alice does not exist
	)
	require.ErrorIs(err, ErrMissingEntity)
	require.True(env.engine.Halted())

	// the first record committed before the failure and stays durable
	c, err := env.store.GetContract()
	require.NoError(err)
	require.Equal(uint64(42), c.RenewalTime)

	pos, err := env.store.Checkpoint()
	require.NoError(err)
	require.Equal(store.Position{Block: b.Number, Records: 1}, pos)
}

type bogusArgs struct{}

func (bogusArgs) Kind() string { return "bogus" }

func TestUnknownRecordKindHalts(t *testing.T) {
	env := newEnv(t)
	env.bootstrap()

	_, err := env.processErr(call(alice, bogusArgs{}))
	require.Error(t, err)
	require.True(t, env.engine.Halted())
}

func TestRollbackThenReprocess(t *testing.T) {
	require := require.New(t)
	env := newEnv(t)
	env.bootstrap()
	forkPoint := env.blk

	retracted := common.HexToAddress("0x0000000000000000000000000000000000000903")
	env.process(call(governor, ledger.ChangeGovernor{Governor: retracted}))

	require.NoError(env.engine.Rollback(ledger.Block{Number: forkPoint}))

	c, err := env.store.GetContract()
	require.NoError(err)
	require.Equal(governor, c.Governor)

	// canonical replacement block
	env.blk = forkPoint
	canonical := common.HexToAddress("0x0000000000000000000000000000000000000904")
	env.process(call(governor, ledger.ChangeGovernor{Governor: canonical}))

	c, err = env.store.GetContract()
	require.NoError(err)
	require.Equal(canonical, c.Governor)
	require.False(env.engine.Halted())
}

func TestRollbackBeyondJournalHalts(t *testing.T) {
	require := require.New(t)
	env := newEnv(t)
	env.bootstrap()
	env.process(call(governor, ledger.ChangeRenewalTime{RenewalTime: 1}))
	env.process(call(governor, ledger.ChangeRenewalTime{RenewalTime: 2}))

	require.NoError(env.store.Prune(env.blk))

	err := env.engine.Rollback(ledger.Block{Number: 1})
	require.ErrorIs(err, store.ErrRollbackTooOld)
	require.True(env.engine.Halted())
}

func TestTransientReadsAreRetried(t *testing.T) {
	require := require.New(t)
	env := newEnv(t)
	env.reader.failures = 1 // first read-back call fails once
	env.bootstrap()

	require.False(env.engine.Halted())
	c, err := env.store.GetContract()
	require.NoError(err)
	require.Equal(env.reader.extraData, c.ArbitratorExtraData)
	// the failed call plus two successful read-backs
	require.Equal(3, env.reader.calls)
}

func TestReplayProducesIdenticalState(t *testing.T) {
	require := require.New(t)

	run := func() *store.Store {
		env := newEnv(t)
		env.bootstrap()
		env.process(call(alice, ledger.AddSubmission{Evidence: "/e.json", Name: "alice", Bio: "bio"}))
		env.registerVoucher(bob)
		env.process(call(bob, ledger.AddVouch{SubmissionID: alice}))
		env.process(call(governor, ledger.ChangeStateToPending{SubmissionID: alice, Vouches: []common.Address{bob}}))
		return env.store
	}

	a, b := run(), run()

	subA, err := a.GetSubmission(alice)
	require.NoError(err)
	subB, err := b.GetSubmission(alice)
	require.NoError(err)
	require.Equal(subA, subB)

	reqA, err := a.GetRequest(registry.RequestID(alice, 0))
	require.NoError(err)
	reqB, err := b.GetRequest(registry.RequestID(alice, 0))
	require.NoError(err)
	require.Equal(reqA, reqB)
}
