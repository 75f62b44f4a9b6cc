// Package indexer maintains secondary lookups over game events so clients
// can list a player's creatures and challenges without scanning state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/storage"
)

const (
	prefixOwnerCreatures  = "idx:owner:mon:"
	prefixPlayerChallenge = "idx:player:chal:"
)

// Indexer subscribes to game events and updates its lookup tables. Index
// keys live outside the state prefixes, so they never affect the state root.
type Indexer struct {
	db storage.DB
}

// New creates an Indexer backed by db and subscribes it to emitter.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db}
	emitter.Subscribe(events.EventCreaturesGranted, idx.onCreaturesGranted)
	emitter.Subscribe(events.EventChallengeIssued, idx.onChallengeIssued)
	return idx
}

// GetCreaturesByOwner returns the creature ids granted to owner, in grant order.
func (idx *Indexer) GetCreaturesByOwner(owner string) ([]uint64, error) {
	var ids []uint64
	err := idx.load(prefixOwnerCreatures+owner, &ids)
	return ids, err
}

// GetChallengesByPlayer returns every pair hash the player has been part of,
// oldest first and without repeats.
func (idx *Indexer) GetChallengesByPlayer(player string) ([]string, error) {
	var hashes []string
	err := idx.load(prefixPlayerChallenge+player, &hashes)
	return hashes, err
}

func (idx *Indexer) onCreaturesGranted(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	ids, _ := ev.Data["ids"].([]uint64)
	if owner == "" || len(ids) == 0 {
		return
	}
	existing, err := idx.GetCreaturesByOwner(owner)
	if err != nil {
		log.Printf("[indexer] load creatures of %s: %v", owner, err)
		return
	}
	if err := idx.store(prefixOwnerCreatures+owner, append(existing, ids...)); err != nil {
		log.Printf("[indexer] store creatures of %s: %v", owner, err)
	}
}

func (idx *Indexer) onChallengeIssued(ev events.Event) {
	hash, _ := ev.Data["challenge_hash"].(string)
	if hash == "" {
		return
	}
	for _, field := range []string{"challenger", "opponent"} {
		player, _ := ev.Data[field].(string)
		if player == "" {
			continue
		}
		if err := idx.addUnique(prefixPlayerChallenge+player, hash); err != nil {
			log.Printf("[indexer] index challenge %s for %s: %v", hash, player, err)
		}
	}
}

// ---- list helpers ----

func (idx *Indexer) load(key string, v any) error {
	data, err := idx.db.Get([]byte(key))
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("indexer unmarshal %s: %w", key, err)
	}
	return nil
}

func (idx *Indexer) store(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) addUnique(key, value string) error {
	var list []string
	if err := idx.load(key, &list); err != nil {
		return err
	}
	if slices.Contains(list, value) {
		return nil
	}
	return idx.store(key, append(list, value))
}
