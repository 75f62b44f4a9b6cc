// Package battle implements direct creature-versus-creature battles.
// A battle is proposed by one of the two owners and settled by the arbiter.
package battle

import (
	"encoding/json"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/internal/errors"
	"github.com/tolelom/monchain/vm"
	"github.com/tolelom/monchain/vm/modules/creature"
	"github.com/tolelom/monchain/vm/outcome"
)

func init() {
	vm.Register(core.TxStartBattle, handleStartBattle)
	vm.Register(core.TxSettleBattle, handleSettleBattle)
}

func handleStartBattle(ctx *vm.Context, payload json.RawMessage) error {
	var p core.StartBattlePayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	if p.MonA == p.MonB {
		return errors.Newf(errors.CodeSelfBattle, "creature %d cannot battle itself", p.MonA)
	}
	a, b, err := load(ctx.State, p.MonA, p.MonB)
	if err != nil {
		return err
	}
	ownerA, err := creature.OwnerOf(ctx.State, a.ID)
	if err != nil {
		return err
	}
	ownerB, err := creature.OwnerOf(ctx.State, b.ID)
	if err != nil {
		return err
	}
	caller := ctx.Caller()
	switch {
	case ownerA == caller && ownerB == caller:
		return errors.Newf(errors.CodeSelfBattle, "caller owns both %d and %d", a.ID, b.ID)
	case ownerA != caller && ownerB != caller:
		return errors.Newf(errors.CodeNotOwner, "caller owns neither %d nor %d", a.ID, b.ID)
	}
	if !a.BattleReady || !b.BattleReady {
		return errors.Newf(errors.CodeNotReady, "creatures %d and %d must both be battle ready", a.ID, b.ID)
	}
	for _, c := range []*core.Creature{a, b} {
		if c.Engaged != "" {
			return errors.Newf(errors.CodeInBattle, "creature %d is committed to %s", c.ID, c.Engaged).
				WithMeta("mon_id", c.ID)
		}
	}

	key := core.BattleKey(a.ID, b.ID)
	for _, c := range []*core.Creature{a, b} {
		c.Engaged = key
		if err := ctx.State.SetCreature(c); err != nil {
			return err
		}
	}

	ctx.Emit(events.EventBattleStarted, map[string]any{
		"mon_a": a.ID,
		"mon_b": b.ID,
	})
	return nil
}

func handleSettleBattle(ctx *vm.Context, payload json.RawMessage) error {
	var p core.SettleBattlePayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	if err := ctx.RequireArbiter(); err != nil {
		return err
	}
	a, b, err := load(ctx.State, p.MonA, p.MonB)
	if err != nil {
		return err
	}
	if !a.BattleReady || !b.BattleReady {
		return errors.Newf(errors.CodeNotReady, "creatures %d and %d are not both battle ready", a.ID, b.ID)
	}
	key := core.BattleKey(p.MonA, p.MonB)
	if p.MonA == p.MonB || a.Engaged != key || b.Engaged != key {
		return errors.Newf(errors.CodeNoBattle, "no battle %s in progress", key)
	}

	winnerID := outcome.Resolve(a, b, p.Entropy)
	winner, loser := outcome.Split(a, b, winnerID)
	if err := outcome.Apply(ctx.State, winner, loser); err != nil {
		return err
	}

	ctx.Emit(events.EventBattleSettled, map[string]any{
		"mon_a":      a.ID,
		"mon_b":      b.ID,
		"winner_mon": winnerID,
	})
	return nil
}

func load(state core.State, idA, idB uint64) (*core.Creature, *core.Creature, error) {
	a, err := creature.Get(state, idA)
	if err != nil {
		return nil, nil, err
	}
	b, err := creature.Get(state, idB)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
