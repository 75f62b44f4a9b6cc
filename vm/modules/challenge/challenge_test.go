package challenge_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/internal/errors"
	"github.com/tolelom/monchain/internal/testutil"
)

type ChallengeTestSuite struct {
	suite.Suite
	chain     *testutil.Chain
	ash       testutil.Key
	misty     testutil.Key
	ashMons   []uint64
	mistyMons []uint64
}

func TestChallengeSuite(t *testing.T) {
	suite.Run(t, new(ChallengeTestSuite))
}

func (s *ChallengeTestSuite) SetupTest() {
	s.chain = testutil.NewChain(s.T())
	s.ash = s.chain.Register("ash")
	s.misty = s.chain.Register("misty")
	s.ashMons = s.chain.Grant(s.ash, 5, "pikachu", "pidgey")
	s.mistyMons = s.chain.Grant(s.misty, 9, "staryu", "psyduck")
}

func (s *ChallengeTestSuite) setReady(k testutil.Key) error {
	return s.chain.Send(k, core.TxSetChallengeReady, core.SetChallengeReadyPayload{})
}

func (s *ChallengeTestSuite) challenge(from, opponent testutil.Key, mon uint64) error {
	return s.chain.Send(from, core.TxChallenge, core.ChallengePayload{Opponent: opponent.Pub, MonID: mon})
}

func (s *ChallengeTestSuite) accept(from, challenger testutil.Key, mon uint64) error {
	return s.chain.Send(from, core.TxAcceptChallenge, core.AcceptChallengePayload{Challenger: challenger.Pub, MonID: mon})
}

func (s *ChallengeTestSuite) settle(from testutil.Key, hash string, entropy uint64) error {
	return s.chain.Send(from, core.TxSettleChallenge, core.SettleChallengePayload{ChallengeHash: hash, Entropy: entropy})
}

func (s *ChallengeTestSuite) state(hash string) core.ChallengeState {
	st, err := s.chain.State.GetChallengeState(hash)
	s.Require().NoError(err)
	return st
}

func (s *ChallengeTestSuite) bothReady() {
	s.Require().NoError(s.setReady(s.ash))
	s.Require().NoError(s.setReady(s.misty))
}

func (s *ChallengeTestSuite) TestSetChallengeReady() {
	s.Require().NoError(s.setReady(s.ash))
	s.True(s.chain.Player(s.ash).ChallengeReady)
	s.Len(s.chain.Events(events.EventChallengeReady), 1)

	s.ErrorIs(s.setReady(s.ash), errors.ErrAlreadyReady)
	s.ErrorIs(s.setReady(testutil.NewKey(s.T())), errors.ErrNotRegistered)
}

func (s *ChallengeTestSuite) TestFullLifecycle() {
	s.bothReady()
	hash := core.ChallengeHash(s.ash.Pub, s.misty.Pub)
	s.Equal(hash, core.ChallengeHash(s.misty.Pub, s.ash.Pub))

	s.Require().NoError(s.challenge(s.ash, s.misty, s.ashMons[0]))
	s.Equal(core.ChallengeIssued, s.state(hash))
	s.False(s.chain.Player(s.ash).ChallengeReady, "issuing consumes the challenger's flag")
	mib, err := s.chain.State.GetMonsInBattle(hash)
	s.Require().NoError(err)
	s.Equal(s.ashMons[0], mib.ChallengerMon)
	issued := s.chain.Events(events.EventChallengeIssued)
	s.Require().Len(issued, 1)
	s.Equal(hash, issued[0].Data["challenge_hash"])

	s.Require().NoError(s.accept(s.misty, s.ash, s.mistyMons[1]))
	s.Equal(core.ChallengeAccepted, s.state(hash))
	s.False(s.chain.Player(s.misty).ChallengeReady)
	mib, err = s.chain.State.GetMonsInBattle(hash)
	s.Require().NoError(err)
	s.Equal(s.mistyMons[1], mib.OpponentMon)

	s.Require().NoError(s.settle(s.chain.Arbiter, hash, 77))
	s.Equal(core.ChallengeNone, s.state(hash))
	_, err = s.chain.State.GetMonsInBattle(hash)
	s.ErrorIs(err, core.ErrNotFound)

	settled := s.chain.Events(events.EventChallengeSettled)
	s.Require().Len(settled, 1)
	winner := settled[0].Data["winner_mon"].(uint64)
	s.Contains([]uint64{s.ashMons[0], s.mistyMons[1]}, winner)
	s.Equal(uint64(1), s.chain.Creature(winner).Wins)
	s.Empty(s.chain.Creature(s.ashMons[0]).Engaged)
	s.Empty(s.chain.Creature(s.mistyMons[1]).Engaged)

	// The pair can start over once both opt in again.
	s.ErrorIs(s.challenge(s.ash, s.misty, s.ashMons[0]), errors.ErrNotReady)
	s.bothReady()
	s.NoError(s.challenge(s.misty, s.ash, s.mistyMons[0]))
}

func (s *ChallengeTestSuite) TestChallengeRejections() {
	brock := s.chain.Register("brock")
	stranger := testutil.NewKey(s.T())

	s.ErrorIs(s.challenge(s.ash, s.misty, s.ashMons[0]), errors.ErrNotReady, "nobody ready")
	s.Require().NoError(s.setReady(s.ash))
	s.ErrorIs(s.challenge(s.ash, s.misty, s.ashMons[0]), errors.ErrNotReady, "opponent not ready")
	s.ErrorIs(s.challenge(s.ash, brock, s.ashMons[0]), errors.ErrNotReady)
	s.ErrorIs(s.challenge(s.ash, stranger, s.ashMons[0]), errors.ErrNotRegistered)
	s.ErrorIs(s.challenge(s.ash, s.ash, s.ashMons[0]), errors.ErrSelfBattle)
	upperAsh := testutil.Key{Pub: strings.ToUpper(s.ash.Pub)}
	s.ErrorIs(s.challenge(s.ash, upperAsh, s.ashMons[0]), errors.ErrInvalidArgument, "upper-case self")

	s.Require().NoError(s.setReady(s.misty))
	s.ErrorIs(s.challenge(s.ash, s.misty, s.mistyMons[0]), errors.ErrNotOwner)
	s.ErrorIs(s.challenge(s.ash, s.misty, 99), errors.ErrNotFound)

	s.Require().NoError(s.challenge(s.ash, s.misty, s.ashMons[0]))
	s.Require().NoError(s.setReady(s.ash))
	s.ErrorIs(s.challenge(s.misty, s.ash, s.mistyMons[0]), errors.ErrAlreadyChallenged, "pair already live in either direction")
}

func (s *ChallengeTestSuite) TestAcceptRejections() {
	s.bothReady()
	s.ErrorIs(s.accept(s.misty, s.ash, s.mistyMons[0]), errors.ErrNoChallenge, "never issued")

	s.Require().NoError(s.challenge(s.ash, s.misty, s.ashMons[0]))
	s.ErrorIs(s.accept(s.ash, s.misty, s.ashMons[1]), errors.ErrNoChallenge, "challenger cannot accept own challenge")
	s.ErrorIs(s.accept(s.misty, s.ash, s.ashMons[1]), errors.ErrNotOwner)
	upperAsh := testutil.Key{Pub: strings.ToUpper(s.ash.Pub)}
	s.ErrorIs(s.accept(s.misty, upperAsh, s.mistyMons[0]), errors.ErrInvalidArgument)

	brock := s.chain.Register("brock")
	s.ErrorIs(s.accept(brock, s.ash, s.ashMons[1]), errors.ErrNoChallenge, "not addressed to caller")

	s.Require().NoError(s.accept(s.misty, s.ash, s.mistyMons[0]))
	s.ErrorIs(s.accept(s.misty, s.ash, s.mistyMons[1]), errors.ErrNoChallenge, "already accepted")
}

func (s *ChallengeTestSuite) TestSettleRejections() {
	s.bothReady()
	hash := core.ChallengeHash(s.ash.Pub, s.misty.Pub)
	s.ErrorIs(s.settle(s.chain.Arbiter, hash, 1), errors.ErrNotAcceptable, "no challenge at all")

	s.Require().NoError(s.challenge(s.ash, s.misty, s.ashMons[0]))
	s.ErrorIs(s.settle(s.chain.Arbiter, hash, 1), errors.ErrNotAcceptable, "not yet accepted")

	s.Require().NoError(s.accept(s.misty, s.ash, s.mistyMons[0]))
	s.ErrorIs(s.settle(s.ash, hash, 1), errors.ErrUnauthorized)

	s.Require().NoError(s.settle(s.chain.Arbiter, hash, 1))
	s.ErrorIs(s.settle(s.chain.Arbiter, hash, 1), errors.ErrNotAcceptable, "double settle")
}

func (s *ChallengeTestSuite) TestEngagedCreatureCannotCrossEngines() {
	s.bothReady()
	s.Require().NoError(s.challenge(s.ash, s.misty, s.ashMons[0]))

	err := s.chain.Send(s.ash, core.TxSetBattleReady, core.SetBattleReadyPayload{MonID: s.ashMons[0]})
	s.ErrorIs(err, errors.ErrInBattle)

	s.chain.MustSend(s.ash, core.TxSetBattleReady, core.SetBattleReadyPayload{MonID: s.ashMons[1]})
	s.chain.MustSend(s.misty, core.TxSetBattleReady, core.SetBattleReadyPayload{MonID: s.mistyMons[0]})
	s.chain.MustSend(s.ash, core.TxStartBattle, core.StartBattlePayload{MonA: s.ashMons[1], MonB: s.mistyMons[0]})

	s.ErrorIs(s.accept(s.misty, s.ash, s.mistyMons[0]), errors.ErrInBattle)
	s.NoError(s.accept(s.misty, s.ash, s.mistyMons[1]))
}
