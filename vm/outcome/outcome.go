// Package outcome picks battle winners and writes post-battle effects.
package outcome

import (
	"strconv"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/crypto"
)

// evolutionWeight is the power one evolution tier is worth in XP.
const evolutionWeight = 100

// Power is a creature's weight in the winner draw. Never zero.
func Power(c *core.Creature) uint64 {
	p := c.XP + evolutionWeight*c.EvolutionLevel
	if p == 0 {
		return 1
	}
	return p
}

// Resolve returns the id of the winner between a and b. The draw is a pure
// function of the entropy and the two ids, and each creature wins with
// probability proportional to its Power.
func Resolve(a, b *core.Creature, entropy uint64) uint64 {
	pa, pb := Power(a), Power(b)
	draw := crypto.Draw("outcome",
		strconv.FormatUint(entropy, 10),
		strconv.FormatUint(a.ID, 10),
		strconv.FormatUint(b.ID, 10))
	if draw%(pa+pb) < pa {
		return a.ID
	}
	return b.ID
}

// Apply records the result: the winner gains a win, the loser a loss, and
// both leave the contest unready so a fresh opt-in is needed to fight again.
func Apply(state core.State, winner, loser *core.Creature) error {
	winner.Wins++
	loser.Losses++
	for _, c := range []*core.Creature{winner, loser} {
		c.BattleReady = false
		c.Engaged = ""
		if err := state.SetCreature(c); err != nil {
			return err
		}
	}
	return nil
}

// Split orders a and b as (winner, loser) given the winning id.
func Split(a, b *core.Creature, winnerID uint64) (winner, loser *core.Creature) {
	if winnerID == a.ID {
		return a, b
	}
	return b, a
}
