package wallet

import (
	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/crypto"
)

// Wallet holds a key pair and builds signed transactions for one chain.
type Wallet struct {
	priv    crypto.PrivateKey
	pub     crypto.PublicKey
	chainID string
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey, chainID string) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public(), chainID: chainID}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate(chainID string) (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv, chainID), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key, which is the player identity.
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// NewTx creates a signed transaction. nonce should match the account's
// current nonce.
func (w *Wallet) NewTx(typ core.TxType, nonce uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(w.chainID, typ, w.pub.Hex(), nonce, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

func (w *Wallet) Register(nonce uint64, name, avatar string) (*core.Transaction, error) {
	return w.NewTx(core.TxRegister, nonce, core.RegisterPayload{Name: name, Avatar: avatar})
}

// GrantStarters is signed by the arbiter.
func (w *Wallet) GrantStarters(nonce uint64, p core.GrantStartersPayload) (*core.Transaction, error) {
	return w.NewTx(core.TxGrantStarters, nonce, p)
}

func (w *Wallet) SetBattleReady(nonce, monID uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxSetBattleReady, nonce, core.SetBattleReadyPayload{MonID: monID})
}

func (w *Wallet) StartBattle(nonce, monA, monB uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxStartBattle, nonce, core.StartBattlePayload{MonA: monA, MonB: monB})
}

// SettleBattle is signed by the arbiter.
func (w *Wallet) SettleBattle(nonce, monA, monB, entropy uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxSettleBattle, nonce, core.SettleBattlePayload{MonA: monA, MonB: monB, Entropy: entropy})
}

func (w *Wallet) SetChallengeReady(nonce uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxSetChallengeReady, nonce, core.SetChallengeReadyPayload{})
}

func (w *Wallet) Challenge(nonce uint64, opponent string, monID uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxChallenge, nonce, core.ChallengePayload{Opponent: opponent, MonID: monID})
}

func (w *Wallet) AcceptChallenge(nonce uint64, challenger string, monID uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxAcceptChallenge, nonce, core.AcceptChallengePayload{Challenger: challenger, MonID: monID})
}

// SettleChallenge is signed by the arbiter.
func (w *Wallet) SettleChallenge(nonce uint64, hash string, entropy uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxSettleChallenge, nonce, core.SettleChallengePayload{ChallengeHash: hash, Entropy: entropy})
}
