package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/crypto"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/storage"
	"github.com/tolelom/monchain/vm"

	// Register every game module with the VM.
	_ "github.com/tolelom/monchain/vm/modules/account"
	_ "github.com/tolelom/monchain/vm/modules/battle"
	_ "github.com/tolelom/monchain/vm/modules/challenge"
	_ "github.com/tolelom/monchain/vm/modules/creature"
)

// ChainID is the chain id used by the harness.
const ChainID = "monchain-test"

// Key is a generated identity.
type Key struct {
	Priv crypto.PrivateKey
	Pub  string
}

// NewKey generates a fresh identity or fails the test.
func NewKey(t testing.TB) Key {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return Key{Priv: priv, Pub: pub.Hex()}
}

// Chain executes signed transactions directly against an in-memory state,
// one tx per pseudo block, and records every emitted event.
type Chain struct {
	T       testing.TB
	DB      *MemDB
	State   *storage.StateDB
	Emitter *events.Emitter
	Exec    *vm.Executor
	Arbiter Key

	mu     sync.Mutex
	events []events.Event
	height int64
}

// NewChain builds a harness with a fresh arbiter key.
func NewChain(t testing.TB) *Chain {
	t.Helper()
	c := &Chain{T: t, DB: NewMemDB(), Emitter: events.NewEmitter(), Arbiter: NewKey(t)}
	c.State = storage.NewStateDB(c.DB)
	c.Exec = vm.NewExecutor(c.State, c.Emitter, c.Arbiter.Pub)
	c.Emitter.SubscribeAll(func(ev events.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, ev)
	})
	return c
}

// Tx builds and signs a transaction from k with its current nonce.
func (c *Chain) Tx(k Key, typ core.TxType, payload any) *core.Transaction {
	c.T.Helper()
	acc, err := c.State.GetAccount(k.Pub)
	require.NoError(c.T, err)
	tx, err := core.NewTransaction(ChainID, typ, k.Pub, acc.Nonce, payload)
	require.NoError(c.T, err)
	tx.Sign(k.Priv)
	return tx
}

// Send executes one transaction from k and returns its error.
func (c *Chain) Send(k Key, typ core.TxType, payload any) error {
	c.T.Helper()
	tx := c.Tx(k, typ, payload)
	c.height++
	block := core.NewBlock(ChainID, c.height, "", c.Arbiter.Pub, nil)
	block.Header.Timestamp = time.Now().UnixNano()
	return c.Exec.ExecuteTx(block, tx)
}

// MustSend is Send that fails the test on error.
func (c *Chain) MustSend(k Key, typ core.TxType, payload any) {
	c.T.Helper()
	require.NoError(c.T, c.Send(k, typ, payload), "%s from %s", typ, k.Pub[:8])
}

// Events returns the recorded events of type typ in emission order.
func (c *Chain) Events(typ events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Register creates a player profile for a new key.
func (c *Chain) Register(name string) Key {
	c.T.Helper()
	k := NewKey(c.T)
	c.MustSend(k, core.TxRegister, core.RegisterPayload{Name: name, Avatar: "https://avatar.example/" + name})
	return k
}

// Grant gives owner a starter set of n creatures and returns their ids.
func (c *Chain) Grant(owner Key, seed uint64, species ...string) []uint64 {
	c.T.Helper()
	before, err := c.State.CreatureCount()
	require.NoError(c.T, err)
	genders := make([]string, len(species))
	catalogue := make([]uint64, len(species))
	for i := range species {
		genders[i] = "male"
		catalogue[i] = uint64(i + 1)
	}
	c.MustSend(c.Arbiter, core.TxGrantStarters, core.GrantStartersPayload{
		Species:      species,
		Genders:      genders,
		CatalogueIDs: catalogue,
		Seed:         seed,
		Owner:        owner.Pub,
	})
	ids := make([]uint64, len(species))
	for i := range ids {
		ids[i] = before + uint64(i)
	}
	return ids
}

// Creature loads creature id or fails the test.
func (c *Chain) Creature(id uint64) *core.Creature {
	c.T.Helper()
	cr, err := c.State.GetCreature(id)
	require.NoError(c.T, err)
	return cr
}

// Player loads the profile for k or fails the test.
func (c *Chain) Player(k Key) *core.Player {
	c.T.Helper()
	p, err := c.State.GetPlayer(k.Pub)
	require.NoError(c.T, err)
	return p
}
