package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/crypto"
)

// registerPrefix adds p to statePrefixes so ComputeRoot covers it.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes lists every key prefix that belongs to the state root.
var statePrefixes []string

var (
	prefixAccount      = registerPrefix("acct:")
	prefixPlayer       = registerPrefix("player:")
	prefixPlayerName   = registerPrefix("pname:")
	prefixPlayerList   = registerPrefix("plist:")
	prefixMeta         = registerPrefix("meta:")
	prefixCreature     = registerPrefix("mon:")
	prefixOwner        = registerPrefix("owner:")
	prefixGrant        = registerPrefix("grant:")
	prefixChallenge    = registerPrefix("chal:")
	prefixMonsInBattle = registerPrefix("mib:")
)

// Receipts are bookkeeping about attempts, not game state, so they are kept
// out of the state root: a rejected tx must leave the root unchanged.
const prefixReceipt = "rcpt:"

const (
	keyPlayerCount   = "meta:player_count"
	keyCreatureCount = "meta:mon_count"
)

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with an in-memory write
// buffer, snapshot/rollback and deterministic state-root computation.
// It is safe for one writer and any number of concurrent readers.
type StateDB struct {
	mu        sync.RWMutex
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, key)
	s.deleted[key] = true
}

func (s *StateDB) getJSON(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// counter reads a decimal counter, treating an absent key as zero.
func (s *StateDB) counter(key string) (uint64, error) {
	data, err := s.get(key)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return n, nil
}

func (s *StateDB) setCounter(key string, n uint64) {
	s.set(key, []byte(strconv.FormatUint(n, 10)))
}

func indexKey(prefix string, n uint64) string {
	return fmt.Sprintf("%s%020d", prefix, n)
}

// ---- Account ----

// GetAccount returns a zero-nonce account for unknown addresses.
func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	var acc core.Account
	err := s.getJSON(prefixAccount+address, &acc)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.setJSON(prefixAccount+acc.Address, acc)
}

// ---- Player ----

func (s *StateDB) GetPlayer(address string) (*core.Player, error) {
	var p core.Player
	if err := s.getJSON(prefixPlayer+address, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *StateDB) SetPlayer(p *core.Player) error {
	return s.setJSON(prefixPlayer+p.Address, p)
}

func (s *StateDB) ClaimName(name, address string) error {
	s.set(prefixPlayerName+name, []byte(address))
	return nil
}

func (s *StateDB) LookupName(name string) (string, error) {
	data, err := s.get(prefixPlayerName + name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *StateDB) AppendPlayer(address string) (uint64, error) {
	n, err := s.counter(keyPlayerCount)
	if err != nil {
		return 0, err
	}
	s.set(indexKey(prefixPlayerList, n), []byte(address))
	s.setCounter(keyPlayerCount, n+1)
	return n, nil
}

func (s *StateDB) PlayerAt(index uint64) (string, error) {
	data, err := s.get(indexKey(prefixPlayerList, index))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *StateDB) PlayerCount() (uint64, error) {
	return s.counter(keyPlayerCount)
}

// ---- Creature ----

func creatureKey(id uint64) string { return prefixCreature + strconv.FormatUint(id, 10) }
func ownerKey(id uint64) string    { return prefixOwner + strconv.FormatUint(id, 10) }

func (s *StateDB) GetCreature(id uint64) (*core.Creature, error) {
	var c core.Creature
	if err := s.getJSON(creatureKey(id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *StateDB) SetCreature(c *core.Creature) error {
	return s.setJSON(creatureKey(c.ID), c)
}

func (s *StateDB) NextCreatureID() (uint64, error) {
	n, err := s.counter(keyCreatureCount)
	if err != nil {
		return 0, err
	}
	s.setCounter(keyCreatureCount, n+1)
	return n, nil
}

func (s *StateDB) CreatureCount() (uint64, error) {
	return s.counter(keyCreatureCount)
}

func (s *StateDB) GetOwner(id uint64) (string, error) {
	data, err := s.get(ownerKey(id))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *StateDB) SetOwner(id uint64, owner string) error {
	s.set(ownerKey(id), []byte(owner))
	return nil
}

func (s *StateDB) HasStarterGrant(address string) (bool, error) {
	_, err := s.get(prefixGrant + address)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *StateDB) MarkStarterGrant(address string) error {
	s.set(prefixGrant+address, []byte{1})
	return nil
}

// ---- Challenge ----

// GetChallengeState returns ChallengeNone for pairs with no record.
func (s *StateDB) GetChallengeState(hash string) (core.ChallengeState, error) {
	data, err := s.get(prefixChallenge + hash)
	if errors.Is(err, core.ErrNotFound) {
		return core.ChallengeNone, nil
	}
	if err != nil {
		return core.ChallengeNone, err
	}
	n, err := strconv.ParseUint(string(data), 10, 8)
	if err != nil {
		return core.ChallengeNone, fmt.Errorf("decode challenge %s: %w", hash, err)
	}
	return core.ChallengeState(n), nil
}

// SetChallengeState stores st; ChallengeNone removes the record.
func (s *StateDB) SetChallengeState(hash string, st core.ChallengeState) error {
	if st == core.ChallengeNone {
		s.del(prefixChallenge + hash)
		return nil
	}
	s.set(prefixChallenge+hash, []byte(strconv.FormatUint(uint64(st), 10)))
	return nil
}

func (s *StateDB) GetMonsInBattle(hash string) (*core.MonsInBattle, error) {
	var m core.MonsInBattle
	if err := s.getJSON(prefixMonsInBattle+hash, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *StateDB) SetMonsInBattle(hash string, m *core.MonsInBattle) error {
	return s.setJSON(prefixMonsInBattle+hash, m)
}

func (s *StateDB) DeleteMonsInBattle(hash string) error {
	s.del(prefixMonsInBattle + hash)
	return nil
}

// ---- Receipt ----

func (s *StateDB) GetReceipt(txID string) (*core.Receipt, error) {
	var r core.Receipt
	if err := s.getJSON(prefixReceipt+txID, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *StateDB) SetReceipt(r *core.Receipt) error {
	return s.setJSON(prefixReceipt+r.TxID, r)
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the buffer saved by Snapshot(id) and drops id and
// every later snapshot. The saved maps are copied so later writes cannot alias them.
func (s *StateDB) RevertToSnapshot(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot hashes the full world state: persisted entries under every
// registered prefix overlaid with the write buffer. Keys are sorted and each
// key and value is written with a 4-byte big-endian length. Nothing is
// flushed, so the root can be put in a block header before Commit.
func (s *StateDB) ComputeRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			merged[string(it.Key())] = bytes.Clone(it.Value())
		}
		it.Release()
	}
	for k, v := range s.dirty {
		merged[k] = v
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		writeLenPrefixed(&buf, []byte(k))
		writeLenPrefixed(&buf, merged[k])
	}
	return crypto.Hash(buf.Bytes())
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	buf.Write(n[:])
	buf.Write(b)
}

// Commit flushes the write buffer through one batch and clears it along with
// all snapshots.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}

// Discard drops every uncommitted change.
func (s *StateDB) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
}
