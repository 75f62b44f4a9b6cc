// Package creature implements the creature store: starter grants,
// battle readiness and the read helpers the battle engines share.
package creature

import (
	"encoding/json"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/internal/errors"
	"github.com/tolelom/monchain/vm"
	"github.com/tolelom/monchain/vm/modules/account"
)

func init() {
	vm.Register(core.TxGrantStarters, handleGrantStarters)
	vm.Register(core.TxSetBattleReady, handleSetBattleReady)
}

func handleGrantStarters(ctx *vm.Context, payload json.RawMessage) error {
	var p core.GrantStartersPayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	if err := ctx.RequireArbiter(); err != nil {
		return err
	}
	if err := vm.CheckIdentity(p.Owner, errors.CodeInvalidOwner); err != nil {
		return err
	}
	verified, err := account.IsVerified(ctx.State, p.Owner)
	if err != nil {
		return err
	}
	if !verified {
		return errors.Newf(errors.CodeInvalidOwner, "%s is not a registered player", p.Owner)
	}
	granted, err := ctx.State.HasStarterGrant(p.Owner)
	if err != nil {
		return err
	}
	if granted {
		return errors.Newf(errors.CodeAlreadyGranted, "%s already received a starter set", p.Owner)
	}
	n := len(p.Species)
	if len(p.Genders) != n || len(p.CatalogueIDs) != n {
		return errors.Newf(errors.CodeLengthMismatch,
			"species=%d genders=%d catalogue_ids=%d", n, len(p.Genders), len(p.CatalogueIDs))
	}
	// An empty set would still use up the one-time grant.
	if n == 0 {
		return errors.New(errors.CodeInvalidArgument, "starter set is empty")
	}

	ids := make([]uint64, n)
	shiny := make([]bool, n)
	for i := range p.Species {
		id, err := ctx.State.NextCreatureID()
		if err != nil {
			return err
		}
		t := StarterTraits(p.Seed, id)
		c := &core.Creature{
			ID:             id,
			Name:           p.Species[i],
			Gender:         p.Genders[i],
			SpeciesID:      p.CatalogueIDs[i],
			XP:             t.XP,
			EvolutionLevel: 1,
			Shiny:          t.Shiny,
		}
		if err := ctx.State.SetCreature(c); err != nil {
			return err
		}
		if err := ctx.State.SetOwner(id, p.Owner); err != nil {
			return err
		}
		ids[i], shiny[i] = id, t.Shiny
	}
	if err := ctx.State.MarkStarterGrant(p.Owner); err != nil {
		return err
	}

	ctx.Emit(events.EventCreaturesGranted, map[string]any{
		"owner": p.Owner,
		"ids":   ids,
		"shiny": shiny,
	})
	return nil
}

func handleSetBattleReady(ctx *vm.Context, payload json.RawMessage) error {
	var p core.SetBattleReadyPayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	c, err := Owned(ctx.State, p.MonID, ctx.Caller())
	if err != nil {
		return err
	}
	if c.BattleReady {
		return errors.Newf(errors.CodeAlreadyReady, "creature %d is already battle ready", c.ID)
	}
	if c.Engaged != "" {
		return errors.Newf(errors.CodeInBattle, "creature %d is committed to %s", c.ID, c.Engaged).
			WithMeta("mon_id", c.ID)
	}
	c.BattleReady = true
	if err := ctx.State.SetCreature(c); err != nil {
		return err
	}

	ctx.Emit(events.EventBattleReady, map[string]any{
		"mon_id": c.ID,
		"owner":  ctx.Caller(),
	})
	return nil
}

// Get returns creature id or a NotFound error.
func Get(state core.State, id uint64) (*core.Creature, error) {
	c, err := state.GetCreature(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, errors.Newf(errors.CodeNotFound, "creature %d does not exist", id)
	}
	return c, err
}

// OwnerOf returns the owner of creature id or a NotFound error.
func OwnerOf(state core.State, id uint64) (string, error) {
	owner, err := state.GetOwner(id)
	if errors.Is(err, core.ErrNotFound) {
		return "", errors.Newf(errors.CodeNotFound, "creature %d does not exist", id)
	}
	return owner, err
}

// Owned loads creature id and checks that caller owns it.
func Owned(state core.State, id uint64, caller string) (*core.Creature, error) {
	c, err := Get(state, id)
	if err != nil {
		return nil, err
	}
	owner, err := OwnerOf(state, id)
	if err != nil {
		return nil, err
	}
	if owner != caller {
		return nil, errors.Newf(errors.CodeNotOwner, "creature %d is not owned by caller", id).
			WithMeta("mon_id", id)
	}
	return c, nil
}
