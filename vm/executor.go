package vm

import (
	"fmt"
	"math"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/internal/errors"
)

// Executor applies transactions to the state using the global Handler registry.
type Executor struct {
	state   core.State
	emitter *events.Emitter
	arbiter string
}

// NewExecutor creates an Executor. arbiter is the pubkey hex allowed to
// grant starters and settle contests; empty disables those operations.
func NewExecutor(state core.State, emitter *events.Emitter, arbiter string) *Executor {
	return &Executor{state: state, emitter: emitter, arbiter: arbiter}
}

// Arbiter returns the configured arbiter identity.
func (e *Executor) Arbiter() string { return e.arbiter }

// ExecuteTx verifies and executes a single transaction atomically: on any
// error every write it made, including the nonce bump, is reverted and none
// of its events are published.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnauthorized, "bad signature")
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	ctx := &Context{State: e.state, Block: block, Tx: tx, Arbiter: e.arbiter}
	if err := e.applyTx(ctx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return err
	}

	if e.emitter == nil {
		return nil
	}
	for _, ev := range ctx.pending {
		e.emitter.Emit(ev)
	}
	e.emitter.Emit(events.Event{
		Type:        events.EventTxExecuted,
		TxID:        tx.ID,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
	})
	return nil
}

// applyTx checks and bumps the nonce, then dispatches to the handler.
func (e *Executor) applyTx(ctx *Context) error {
	tx := ctx.Tx
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return errors.Newf(errors.CodeInvalidArgument, "invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Nonce == math.MaxUint64 {
		return errors.Newf(errors.CodeInvalidArgument, "nonce overflow for account %s", short(tx.From))
	}
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}
	return globalRegistry.Execute(tx.Type, ctx, tx.Payload)
}
