package indexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/indexer"
	"github.com/tolelom/monchain/internal/testutil"
)

func TestIndexesGrantsAndChallenges(t *testing.T) {
	c := testutil.NewChain(t)
	idx := indexer.New(testutil.NewMemDB(), c.Emitter)

	ash, misty := c.Register("ash"), c.Register("misty")
	ashMons := c.Grant(ash, 1, "pikachu", "pidgey")
	mistyMons := c.Grant(misty, 2, "staryu")

	got, err := idx.GetCreaturesByOwner(ash.Pub)
	require.NoError(t, err)
	assert.Equal(t, ashMons, got)
	got, err = idx.GetCreaturesByOwner(misty.Pub)
	require.NoError(t, err)
	assert.Equal(t, mistyMons, got)

	hash := core.ChallengeHash(ash.Pub, misty.Pub)
	for round := uint64(0); round < 2; round++ {
		c.MustSend(ash, core.TxSetChallengeReady, core.SetChallengeReadyPayload{})
		c.MustSend(misty, core.TxSetChallengeReady, core.SetChallengeReadyPayload{})
		c.MustSend(ash, core.TxChallenge, core.ChallengePayload{Opponent: misty.Pub, MonID: ashMons[0]})
		c.MustSend(misty, core.TxAcceptChallenge, core.AcceptChallengePayload{Challenger: ash.Pub, MonID: mistyMons[0]})
		c.MustSend(c.Arbiter, core.TxSettleChallenge, core.SettleChallengePayload{ChallengeHash: hash, Entropy: round})
	}

	for _, k := range []testutil.Key{ash, misty} {
		hashes, err := idx.GetChallengesByPlayer(k.Pub)
		require.NoError(t, err)
		assert.Equal(t, []string{hash}, hashes, "a repeated pair is listed once")
	}
}

func TestRejectedTxIsNotIndexed(t *testing.T) {
	c := testutil.NewChain(t)
	idx := indexer.New(testutil.NewMemDB(), c.Emitter)
	ash := c.Register("ash")

	err := c.Send(ash, core.TxGrantStarters, core.GrantStartersPayload{
		Species: []string{"pikachu"}, Genders: []string{"male"}, CatalogueIDs: []uint64{1}, Owner: ash.Pub,
	})
	require.Error(t, err)

	got, err := idx.GetCreaturesByOwner(ash.Pub)
	require.NoError(t, err)
	assert.Empty(t, got)
}
