// Package challenge implements player-versus-player challenges. Each
// unordered pair of players has at most one live challenge, keyed by
// core.ChallengeHash, moving NONE -> CHALLENGED -> ACCEPTED -> NONE.
package challenge

import (
	"encoding/json"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/internal/errors"
	"github.com/tolelom/monchain/vm"
	"github.com/tolelom/monchain/vm/modules/account"
	"github.com/tolelom/monchain/vm/modules/creature"
	"github.com/tolelom/monchain/vm/outcome"
)

func init() {
	vm.Register(core.TxSetChallengeReady, handleSetChallengeReady)
	vm.Register(core.TxChallenge, handleChallenge)
	vm.Register(core.TxAcceptChallenge, handleAcceptChallenge)
	vm.Register(core.TxSettleChallenge, handleSettleChallenge)
}

func handleSetChallengeReady(ctx *vm.Context, payload json.RawMessage) error {
	var p core.SetChallengeReadyPayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	player, err := account.Get(ctx.State, ctx.Caller())
	if err != nil {
		return err
	}
	if player.ChallengeReady {
		return errors.New(errors.CodeAlreadyReady, "already challenge ready")
	}
	player.ChallengeReady = true
	if err := ctx.State.SetPlayer(player); err != nil {
		return err
	}

	ctx.Emit(events.EventChallengeReady, map[string]any{"player": player.Address})
	return nil
}

func handleChallenge(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ChallengePayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	if err := vm.CheckIdentity(p.Opponent, errors.CodeInvalidArgument); err != nil {
		return err
	}
	caller := ctx.Caller()
	if p.Opponent == caller {
		return errors.New(errors.CodeSelfBattle, "cannot challenge yourself")
	}
	challenger, err := account.Get(ctx.State, caller)
	if err != nil {
		return err
	}
	opponent, err := account.Get(ctx.State, p.Opponent)
	if err != nil {
		return err
	}
	if !challenger.ChallengeReady || !opponent.ChallengeReady {
		return errors.New(errors.CodeNotReady, "both players must be challenge ready")
	}
	mon, err := creature.Owned(ctx.State, p.MonID, caller)
	if err != nil {
		return err
	}
	if mon.Engaged != "" {
		return errors.Newf(errors.CodeInBattle, "creature %d is committed to %s", mon.ID, mon.Engaged).
			WithMeta("mon_id", mon.ID)
	}
	hash := core.ChallengeHash(caller, p.Opponent)
	st, err := ctx.State.GetChallengeState(hash)
	if err != nil {
		return err
	}
	if st != core.ChallengeNone {
		return errors.Newf(errors.CodeAlreadyChallenged, "pair is already %s", st)
	}

	if err := ctx.State.SetChallengeState(hash, core.ChallengeIssued); err != nil {
		return err
	}
	if err := ctx.State.SetMonsInBattle(hash, &core.MonsInBattle{
		Challenger:    caller,
		Opponent:      p.Opponent,
		ChallengerMon: mon.ID,
	}); err != nil {
		return err
	}
	challenger.ChallengeReady = false
	if err := ctx.State.SetPlayer(challenger); err != nil {
		return err
	}
	mon.Engaged = core.ChallengeKey(hash)
	if err := ctx.State.SetCreature(mon); err != nil {
		return err
	}

	ctx.Emit(events.EventChallengeIssued, map[string]any{
		"challenger":     caller,
		"opponent":       p.Opponent,
		"mon_id":         mon.ID,
		"challenge_hash": hash,
	})
	return nil
}

// handleAcceptChallenge commits the opponent's creature and moves the pair to
// ACCEPTED. The acceptor's challenge_ready flag is consumed here as well as
// the challenger's on issuance: every completed challenge/accept returns the
// involved player flags to not-ready, so both sides opt in again before the
// next contest.
func handleAcceptChallenge(ctx *vm.Context, payload json.RawMessage) error {
	var p core.AcceptChallengePayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	if err := vm.CheckIdentity(p.Challenger, errors.CodeInvalidArgument); err != nil {
		return err
	}
	caller := ctx.Caller()
	hash := core.ChallengeHash(p.Challenger, caller)
	st, err := ctx.State.GetChallengeState(hash)
	if err != nil {
		return err
	}
	if st != core.ChallengeIssued {
		return errors.Newf(errors.CodeNoChallenge, "no open challenge from %s", p.Challenger)
	}
	mib, err := ctx.State.GetMonsInBattle(hash)
	if err != nil {
		return err
	}
	// The pair hash is symmetric, so the record decides who may accept.
	if mib.Challenger != p.Challenger || mib.Opponent != caller {
		return errors.Newf(errors.CodeNoChallenge, "no open challenge from %s to caller", p.Challenger)
	}
	mon, err := creature.Owned(ctx.State, p.MonID, caller)
	if err != nil {
		return err
	}
	if mon.Engaged != "" {
		return errors.Newf(errors.CodeInBattle, "creature %d is committed to %s", mon.ID, mon.Engaged).
			WithMeta("mon_id", mon.ID)
	}

	if err := ctx.State.SetChallengeState(hash, core.ChallengeAccepted); err != nil {
		return err
	}
	mib.OpponentMon = mon.ID
	if err := ctx.State.SetMonsInBattle(hash, mib); err != nil {
		return err
	}
	mon.Engaged = core.ChallengeKey(hash)
	if err := ctx.State.SetCreature(mon); err != nil {
		return err
	}
	player, err := account.Get(ctx.State, caller)
	if err != nil {
		return err
	}
	if player.ChallengeReady {
		player.ChallengeReady = false
		if err := ctx.State.SetPlayer(player); err != nil {
			return err
		}
	}

	ctx.Emit(events.EventChallengeAccepted, map[string]any{
		"challenge_hash": hash,
		"challenger":     mib.Challenger,
		"opponent":       mib.Opponent,
		"challenger_mon": mib.ChallengerMon,
		"opponent_mon":   mib.OpponentMon,
	})
	return nil
}

func handleSettleChallenge(ctx *vm.Context, payload json.RawMessage) error {
	var p core.SettleChallengePayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	if err := ctx.RequireArbiter(); err != nil {
		return err
	}
	st, err := ctx.State.GetChallengeState(p.ChallengeHash)
	if err != nil {
		return err
	}
	if st != core.ChallengeAccepted {
		return errors.Newf(errors.CodeNotAcceptable, "challenge is %s, not ACCEPTED", st)
	}
	mib, err := ctx.State.GetMonsInBattle(p.ChallengeHash)
	if err != nil {
		return err
	}
	a, err := creature.Get(ctx.State, mib.ChallengerMon)
	if err != nil {
		return err
	}
	b, err := creature.Get(ctx.State, mib.OpponentMon)
	if err != nil {
		return err
	}

	winnerID := outcome.Resolve(a, b, p.Entropy)
	winner, loser := outcome.Split(a, b, winnerID)
	if err := outcome.Apply(ctx.State, winner, loser); err != nil {
		return err
	}
	if err := ctx.State.SetChallengeState(p.ChallengeHash, core.ChallengeNone); err != nil {
		return err
	}
	if err := ctx.State.DeleteMonsInBattle(p.ChallengeHash); err != nil {
		return err
	}

	ctx.Emit(events.EventChallengeSettled, map[string]any{
		"challenge_hash": p.ChallengeHash,
		"challenger":     mib.Challenger,
		"opponent":       mib.Opponent,
		"winner_mon":     winnerID,
	})
	return nil
}
