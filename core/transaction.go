package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/monchain/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxRegister          TxType = "register"
	TxGrantStarters     TxType = "grant_starters"
	TxSetBattleReady    TxType = "set_battle_ready"
	TxStartBattle       TxType = "start_battle"
	TxSettleBattle      TxType = "settle_battle"
	TxSetChallengeReady TxType = "set_challenge_ready"
	TxChallenge         TxType = "challenge"
	TxAcceptChallenge   TxType = "accept_challenge"
	TxSettleChallenge   TxType = "settle_challenge"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// Signature covers all fields except ID and Signature.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	data, err := json.Marshal(signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	})
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// RegisterPayload creates the sender's player profile.
type RegisterPayload struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// GrantStartersPayload mints an owner's one-time starter set. Arbiter only.
// The three slices are parallel: slot i describes one creature.
type GrantStartersPayload struct {
	Species      []string `json:"species"`
	Genders      []string `json:"genders"`
	CatalogueIDs []uint64 `json:"catalogue_ids"`
	Seed         uint64   `json:"seed"`
	Owner        string   `json:"owner"` // recipient pubkey hex
}

// SetBattleReadyPayload opts a creature into direct battles.
type SetBattleReadyPayload struct {
	MonID uint64 `json:"mon_id"`
}

// SetChallengeReadyPayload is empty: the sender opts in to challenges.
type SetChallengeReadyPayload struct{}

// StartBattlePayload proposes a direct battle between two ready creatures.
type StartBattlePayload struct {
	MonA uint64 `json:"mon_a"`
	MonB uint64 `json:"mon_b"`
}

// SettleBattlePayload resolves a started direct battle. Arbiter only.
type SettleBattlePayload struct {
	MonA    uint64 `json:"mon_a"`
	MonB    uint64 `json:"mon_b"`
	Entropy uint64 `json:"entropy"`
}

// ChallengePayload challenges Opponent with the sender's creature.
type ChallengePayload struct {
	Opponent string `json:"opponent"`
	MonID    uint64 `json:"mon_id"`
}

// AcceptChallengePayload accepts a challenge issued by Challenger.
type AcceptChallengePayload struct {
	Challenger string `json:"challenger"`
	MonID      uint64 `json:"mon_id"`
}

// SettleChallengePayload resolves an accepted challenge. Arbiter only.
type SettleChallengePayload struct {
	ChallengeHash string `json:"challenge_hash"`
	Entropy       uint64 `json:"entropy"`
}
