package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/internal/testutil"
	"github.com/tolelom/monchain/storage"
)

func writeFixture(t testing.TB, s *storage.StateDB) {
	t.Helper()
	require.NoError(t, s.SetAccount(&core.Account{Address: "aa", Nonce: 3}))
	require.NoError(t, s.SetPlayer(&core.Player{Address: "aa", Name: "ash", Verified: true}))
	require.NoError(t, s.ClaimName("ash", "aa"))
	_, err := s.AppendPlayer("aa")
	require.NoError(t, err)
	id, err := s.NextCreatureID()
	require.NoError(t, err)
	require.NoError(t, s.SetCreature(&core.Creature{ID: id, Name: "pikachu", XP: 50, EvolutionLevel: 1}))
	require.NoError(t, s.SetOwner(id, "aa"))
	require.NoError(t, s.MarkStarterGrant("aa"))
	require.NoError(t, s.SetChallengeState("h1", core.ChallengeIssued))
	require.NoError(t, s.SetMonsInBattle("h1", &core.MonsInBattle{Challenger: "aa", Opponent: "bb"}))
}

func fixtureRoot(t testing.TB) string {
	s := testutil.NewStateDB()
	writeFixture(t, s)
	return s.ComputeRoot()
}

func TestAbsentRecords(t *testing.T) {
	s := testutil.NewStateDB()

	acc, err := s.GetAccount("nobody")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), acc.Nonce)

	_, err = s.GetPlayer("nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetCreature(0)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.LookupName("ash")
	assert.ErrorIs(t, err, core.ErrNotFound)

	st, err := s.GetChallengeState("h")
	require.NoError(t, err)
	assert.Equal(t, core.ChallengeNone, st)

	granted, err := s.HasStarterGrant("nobody")
	require.NoError(t, err)
	assert.False(t, granted)

	n, err := s.CreatureCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCountersAreDense(t *testing.T) {
	s := testutil.NewStateDB()
	for want := uint64(0); want < 3; want++ {
		id, err := s.NextCreatureID()
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	n, err := s.CreatureCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestChallengeStateNoneDeletesRecord(t *testing.T) {
	db := testutil.NewMemDB()
	s := storage.NewStateDB(db)
	require.NoError(t, s.SetChallengeState("h", core.ChallengeAccepted))
	require.NoError(t, s.Commit())
	_, err := db.Get([]byte("chal:h"))
	require.NoError(t, err)

	require.NoError(t, s.SetChallengeState("h", core.ChallengeNone))
	require.NoError(t, s.Commit())
	_, err = db.Get([]byte("chal:h"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSnapshotRevert(t *testing.T) {
	s := testutil.NewStateDB()
	require.NoError(t, s.SetCreature(&core.Creature{ID: 0, XP: 10}))
	root := s.ComputeRoot()

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.NoError(t, s.SetCreature(&core.Creature{ID: 0, XP: 99}))
	require.NoError(t, s.SetChallengeState("h", core.ChallengeIssued))
	require.NoError(t, s.RevertToSnapshot(snap))

	c, err := s.GetCreature(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), c.XP)
	assert.Equal(t, root, s.ComputeRoot())
	assert.Error(t, s.RevertToSnapshot(snap), "snapshot is consumed")
}

func TestReceiptsStayOutOfRoot(t *testing.T) {
	s := testutil.NewStateDB()
	root := s.ComputeRoot()
	require.NoError(t, s.SetReceipt(&core.Receipt{TxID: "t1", Status: core.ReceiptFailed, Code: "NOT_OWNER"}))
	assert.Equal(t, root, s.ComputeRoot())

	r, err := s.GetReceipt("t1")
	require.NoError(t, err)
	assert.Equal(t, "NOT_OWNER", r.Code)
}

func TestDiscard(t *testing.T) {
	db := testutil.NewMemDB()
	s := storage.NewStateDB(db)
	require.NoError(t, s.SetPlayer(&core.Player{Address: "aa"}))
	s.Discard()
	require.NoError(t, s.Commit())
	assert.Zero(t, db.Len())
}

func TestRootChangesWithState(t *testing.T) {
	s := testutil.NewStateDB()
	empty := s.ComputeRoot()
	writeFixture(t, s)
	assert.NotEqual(t, empty, s.ComputeRoot())
}
