package vm

import (
	"encoding/json"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/crypto"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/internal/errors"
)

// Context is passed to every Handler. Events emitted through it are held
// until the transaction succeeds; a reverted tx publishes nothing.
type Context struct {
	State   core.State
	Block   *core.Block
	Tx      *core.Transaction
	Arbiter string // configured arbiter pubkey hex

	pending []events.Event
}

// Caller returns the verified sender identity.
func (c *Context) Caller() string { return c.Tx.From }

// RequireArbiter fails with Unauthorized unless the sender is the arbiter.
func (c *Context) RequireArbiter() error {
	if c.Arbiter == "" || c.Tx.From != c.Arbiter {
		return errors.Newf(errors.CodeUnauthorized, "%s is not the arbiter", short(c.Tx.From))
	}
	return nil
}

// CheckIdentity fails with code unless addr is a canonical pubkey hex.
// Identities are compared as strings throughout the modules.
func CheckIdentity(addr string, code errors.Code) error {
	if _, err := crypto.PubKeyFromHex(addr); err != nil {
		return errors.WrapWithCode(err, code, "invalid identity "+short(addr))
	}
	return nil
}

// Decode unmarshals payload into v, reporting bad input as InvalidArgument.
func (c *Context) Decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid payload")
	}
	return nil
}

// Emit queues an event for publication after the tx commits to the buffer.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	ev := events.Event{Type: typ, Data: data}
	if c.Tx != nil {
		ev.TxID = c.Tx.ID
	}
	if c.Block != nil {
		ev.BlockHeight = c.Block.Header.Height
	}
	c.pending = append(c.pending, ev)
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
