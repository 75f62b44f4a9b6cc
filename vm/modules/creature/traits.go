package creature

import (
	"strconv"

	"github.com/tolelom/monchain/crypto"
)

const (
	shinyPercent = 15
	xpStep       = 10
	xpTiers      = 5
)

// Traits are the seeded attributes of a freshly granted creature.
type Traits struct {
	Shiny bool
	XP    uint64
}

// StarterTraits derives a starter's traits from the grant seed and the
// creature id. The same (seed, id) always yields the same traits.
func StarterTraits(seed, id uint64) Traits {
	draw := crypto.Draw("starter", strconv.FormatUint(seed, 10), strconv.FormatUint(id, 10))
	return Traits{
		Shiny: draw%100 < shinyPercent,
		XP:    xpStep * (1 + (draw>>8)%xpTiers),
	}
}
