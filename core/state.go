package core

// Account holds a participant's replay-protection nonce.
// Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Nonce   uint64 `json:"nonce"`
}

// Player is a registered profile. One per identity, created by register.
type Player struct {
	Address        string `json:"address"` // pubkey hex
	Name           string `json:"name"`
	Avatar         string `json:"avatar"`
	Verified       bool   `json:"verified"`
	ChallengeReady bool   `json:"challenge_ready"`
	RegisteredAt   int64  `json:"registered_at"`
}

// Creature is a collectible battler. Ownership is not stored here; see
// State.GetOwner.
type Creature struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	Gender         string `json:"gender"`
	SpeciesID      uint64 `json:"species_id"`
	XP             uint64 `json:"xp"`
	EvolutionLevel uint64 `json:"evolution_level"`
	BattleReady    bool   `json:"battle_ready"`
	Shiny          bool   `json:"shiny"`
	Wins           uint64 `json:"wins"`
	Losses         uint64 `json:"losses"`
	Engaged        string `json:"engaged,omitempty"` // contest key while committed to a battle or challenge
}

// ChallengeState is the per-pair challenge state machine.
type ChallengeState uint8

const (
	ChallengeNone ChallengeState = iota
	ChallengeIssued
	ChallengeAccepted
)

func (s ChallengeState) String() string {
	switch s {
	case ChallengeNone:
		return "NONE"
	case ChallengeIssued:
		return "CHALLENGED"
	case ChallengeAccepted:
		return "ACCEPTED"
	default:
		return "UNKNOWN"
	}
}

// MonsInBattle records who is fighting with what for a pair hash. Only
// meaningful while the pair is CHALLENGED or ACCEPTED.
type MonsInBattle struct {
	Challenger    string `json:"challenger"`
	Opponent      string `json:"opponent"`
	ChallengerMon uint64 `json:"challenger_mon"`
	OpponentMon   uint64 `json:"opponent_mon"`
}

// Receipt status values.
const (
	ReceiptOK     = "ok"
	ReceiptFailed = "failed"
)

// Receipt records the outcome of a transaction the block producer attempted.
type Receipt struct {
	TxID        string         `json:"tx_id"`
	Type        TxType         `json:"type"`
	From        string         `json:"from"`
	BlockHeight int64          `json:"block_height"`
	Status      string         `json:"status"`
	Code        string         `json:"code,omitempty"`
	Error       string         `json:"error,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// State is the full world-state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
// Getters of keyed records return ErrNotFound when absent.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Players
	GetPlayer(address string) (*Player, error)
	SetPlayer(p *Player) error
	// ClaimName records name → address; LookupName returns ErrNotFound when unclaimed.
	ClaimName(name, address string) error
	LookupName(name string) (string, error)
	// AppendPlayer adds address to the enumeration and returns its index.
	AppendPlayer(address string) (uint64, error)
	PlayerAt(index uint64) (string, error)
	PlayerCount() (uint64, error)

	// Creatures
	GetCreature(id uint64) (*Creature, error)
	SetCreature(c *Creature) error
	// NextCreatureID reserves and returns the next dense creature id.
	NextCreatureID() (uint64, error)
	CreatureCount() (uint64, error)
	GetOwner(id uint64) (string, error)
	SetOwner(id uint64, owner string) error
	HasStarterGrant(address string) (bool, error)
	MarkStarterGrant(address string) error

	// Challenges
	GetChallengeState(hash string) (ChallengeState, error)
	SetChallengeState(hash string, st ChallengeState) error
	GetMonsInBattle(hash string) (*MonsInBattle, error)
	SetMonsInBattle(hash string, m *MonsInBattle) error
	DeleteMonsInBattle(hash string) error

	// Receipts
	GetReceipt(txID string) (*Receipt, error)
	SetReceipt(r *Receipt) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the block header.
	Commit() error
	// Discard drops the write buffer without flushing.
	Discard()
}
