package vm_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/internal/errors"
	"github.com/tolelom/monchain/internal/testutil"
	"github.com/tolelom/monchain/vm"
)

func TestExecuteTxBumpsNonce(t *testing.T) {
	c := testutil.NewChain(t)
	ash := c.Register("ash")

	acc, err := c.State.GetAccount(ash.Pub)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), acc.Nonce)
	assert.Len(t, c.Events(events.EventTxExecuted), 1)
}

func TestExecuteTxRejectsWrongNonce(t *testing.T) {
	c := testutil.NewChain(t)
	k := testutil.NewKey(t)
	tx, err := core.NewTransaction(testutil.ChainID, core.TxRegister, k.Pub, 5, core.RegisterPayload{Name: "ash"})
	require.NoError(t, err)
	tx.Sign(k.Priv)

	err = c.Exec.ExecuteTx(core.NewBlock(testutil.ChainID, 1, "", "", nil), tx)
	assert.Equal(t, errors.CodeInvalidArgument, errors.GetCode(err))
}

func TestExecuteTxRejectsBadSignature(t *testing.T) {
	c := testutil.NewChain(t)
	k, other := testutil.NewKey(t), testutil.NewKey(t)
	tx := c.Tx(k, core.TxRegister, core.RegisterPayload{Name: "ash"})
	tx.Sign(other.Priv)

	err := c.Exec.ExecuteTx(core.NewBlock(testutil.ChainID, 1, "", "", nil), tx)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestFailedTxRevertsNonceAndPublishesNothing(t *testing.T) {
	c := testutil.NewChain(t)
	ash := c.Register("ash")
	root := c.State.ComputeRoot()

	err := c.Send(ash, core.TxRegister, core.RegisterPayload{Name: "again"})
	require.ErrorIs(t, err, errors.ErrAlreadyRegistered)

	acc, err := c.State.GetAccount(ash.Pub)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), acc.Nonce)
	assert.Equal(t, root, c.State.ComputeRoot())
	assert.Len(t, c.Events(events.EventPlayerRegistered), 1)
	assert.Len(t, c.Events(events.EventTxExecuted), 1)
}

func TestUnknownTxType(t *testing.T) {
	c := testutil.NewChain(t)
	err := c.Send(testutil.NewKey(t), core.TxType("teleport"), struct{}{})
	assert.Equal(t, errors.CodeInvalidArgument, errors.GetCode(err))
}

func TestMalformedPayload(t *testing.T) {
	c := testutil.NewChain(t)
	k := testutil.NewKey(t)
	tx := c.Tx(k, core.TxRegister, nil)
	tx.Payload = json.RawMessage(`{"name": 7}`)
	tx.Sign(k.Priv)

	err := c.Exec.ExecuteTx(core.NewBlock(testutil.ChainID, 1, "", "", nil), tx)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestRegistryPanicsOnDuplicate(t *testing.T) {
	r := vm.NewRegistry()
	h := func(*vm.Context, json.RawMessage) error { return nil }
	r.Register("x", h)
	assert.Panics(t, func() { r.Register("x", h) })
	assert.Equal(t, []core.TxType{"x"}, r.Types())
}

func TestAllGameTxTypesRegistered(t *testing.T) {
	assert.ElementsMatch(t, []core.TxType{
		core.TxRegister, core.TxGrantStarters, core.TxSetBattleReady,
		core.TxStartBattle, core.TxSettleBattle, core.TxSetChallengeReady,
		core.TxChallenge, core.TxAcceptChallenge, core.TxSettleChallenge,
	}, vm.RegisteredTypes())
}

func TestRequireArbiter(t *testing.T) {
	arb, other := testutil.NewKey(t), testutil.NewKey(t)
	ctx := &vm.Context{Tx: &core.Transaction{From: arb.Pub}, Arbiter: arb.Pub}
	assert.NoError(t, ctx.RequireArbiter())

	ctx.Tx.From = other.Pub
	assert.ErrorIs(t, ctx.RequireArbiter(), errors.ErrUnauthorized)

	ctx = &vm.Context{Tx: &core.Transaction{From: ""}, Arbiter: ""}
	assert.ErrorIs(t, ctx.RequireArbiter(), errors.ErrUnauthorized, "no arbiter configured")
}
