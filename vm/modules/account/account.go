// Package account implements player registration.
package account

import (
	"encoding/json"
	"strings"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/internal/errors"
	"github.com/tolelom/monchain/vm"
)

// MaxNameLen bounds a display name in bytes after trimming.
const MaxNameLen = 32

func init() {
	vm.Register(core.TxRegister, handleRegister)
}

func handleRegister(ctx *vm.Context, payload json.RawMessage) error {
	var p core.RegisterPayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	caller := ctx.Caller()

	registered, err := IsVerified(ctx.State, caller)
	if err != nil {
		return err
	}
	if registered {
		return errors.Newf(errors.CodeAlreadyRegistered, "%s already has a profile", caller)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return errors.New(errors.CodeInvalidName, "name must not be empty")
	}
	if len(name) > MaxNameLen {
		return errors.Newf(errors.CodeInvalidName, "name longer than %d bytes", MaxNameLen)
	}
	holder, err := ctx.State.LookupName(name)
	switch {
	case err == nil:
		return errors.Newf(errors.CodeNameTaken, "name %q is held by %s", name, holder)
	case !errors.Is(err, core.ErrNotFound):
		return err
	}

	player := &core.Player{
		Address:      caller,
		Name:         name,
		Avatar:       p.Avatar,
		Verified:     true,
		RegisteredAt: ctx.Block.Header.Timestamp,
	}
	if err := ctx.State.SetPlayer(player); err != nil {
		return err
	}
	if err := ctx.State.ClaimName(name, caller); err != nil {
		return err
	}
	index, err := ctx.State.AppendPlayer(caller)
	if err != nil {
		return err
	}

	ctx.Emit(events.EventPlayerRegistered, map[string]any{
		"player": caller,
		"name":   name,
		"index":  index,
	})
	return nil
}

// IsVerified reports whether address has a player profile.
func IsVerified(state core.State, address string) (bool, error) {
	p, err := state.GetPlayer(address)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Verified, nil
}

// Get returns the profile for address, failing with NotRegistered when absent.
func Get(state core.State, address string) (*core.Player, error) {
	p, err := state.GetPlayer(address)
	if errors.Is(err, core.ErrNotFound) {
		return nil, errors.Newf(errors.CodeNotRegistered, "%s has no profile", address)
	}
	return p, err
}
