package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/indexer"
	ierrors "github.com/tolelom/monchain/internal/errors"
	"github.com/tolelom/monchain/vm/modules/account"
	"github.com/tolelom/monchain/vm/modules/creature"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	state   core.State
	indexer *indexer.Indexer
	chainID string
}

// NewHandler creates an RPC Handler.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, state core.State, idx *indexer.Indexer, chainID string) *Handler {
	return &Handler{bc: bc, mempool: mempool, state: state, indexer: idx, chainID: chainID}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	result, err := h.call(req.Method, req.Params)
	if err != nil {
		return Response{JSONRPC: "2.0", ID: req.ID, Error: toRPCError(err)}
	}
	return okResponse(req.ID, result)
}

func (h *Handler) call(method string, params json.RawMessage) (any, error) {
	switch method {
	case "getBlockHeight":
		return h.bc.Height(), nil
	case "getBlock":
		return h.getBlock(params)
	case "getAccount":
		return h.getAccount(params)
	case "getPlayer":
		return h.getPlayer(params)
	case "isVerified":
		return h.isVerified(params)
	case "getPlayerCount":
		return h.state.PlayerCount()
	case "getPlayerAt":
		return h.getPlayerAt(params)
	case "getCreature":
		return h.getCreature(params)
	case "getCreatureCount":
		return h.state.CreatureCount()
	case "ownerOf":
		return h.ownerOf(params)
	case "getCreaturesByOwner":
		return h.getCreaturesByOwner(params)
	case "challengeHash":
		return h.challengeHash(params)
	case "getChallenge":
		return h.getChallenge(params)
	case "getMonsInBattle":
		return h.getMonsInBattle(params)
	case "getChallengesByPlayer":
		return h.getChallengesByPlayer(params)
	case "getReceipt":
		return h.getReceipt(params)
	case "sendTx":
		return h.sendTx(params)
	case "getMempoolSize":
		return h.mempool.Size(), nil
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", method)}
	}
}

// toRPCError maps game errors to CodeGameError with the code in data.
func toRPCError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var gameErr *ierrors.Error
	if ierrors.As(err, &gameErr) {
		code := CodeGameError
		if gameErr.Code == ierrors.CodeInternal {
			code = CodeInternalError
		}
		return &Error{Code: code, Message: err.Error(), Data: &ErrorData{Code: gameErr.Code.String(), Meta: gameErr.Meta}}
	}
	if errors.Is(err, core.ErrNotFound) {
		return &Error{Code: CodeGameError, Message: err.Error(), Data: &ErrorData{Code: ierrors.CodeNotFound.String()}}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

func invalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func bind(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return invalidParams("params are required")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return invalidParams("params: %v", err)
	}
	return nil
}

type addressParams struct {
	Address string `json:"address"`
}

func bindAddress(params json.RawMessage) (string, error) {
	var p addressParams
	if err := bind(params, &p); err != nil {
		return "", err
	}
	if p.Address == "" {
		return "", invalidParams("address is required")
	}
	return p.Address, nil
}

type idParams struct {
	ID *uint64 `json:"id"`
}

func bindID(params json.RawMessage) (uint64, error) {
	var p idParams
	if err := bind(params, &p); err != nil {
		return 0, err
	}
	if p.ID == nil {
		return 0, invalidParams("id is required")
	}
	return *p.ID, nil
}

func (h *Handler) getBlock(params json.RawMessage) (any, error) {
	var p struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if len(params) > 0 {
		if err := bind(params, &p); err != nil {
			return nil, err
		}
	}

	var block *core.Block
	var err error
	switch {
	case p.Hash != "":
		block, err = h.bc.GetBlock(p.Hash)
	case p.Height != nil:
		block, err = h.bc.GetBlockByHeight(*p.Height)
	default:
		block = h.bc.Tip()
	}
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, core.ErrNotFound
	}
	return block, nil
}

func (h *Handler) getAccount(params json.RawMessage) (any, error) {
	addr, err := bindAddress(params)
	if err != nil {
		return nil, err
	}
	return h.state.GetAccount(addr)
}

func (h *Handler) getPlayer(params json.RawMessage) (any, error) {
	addr, err := bindAddress(params)
	if err != nil {
		return nil, err
	}
	return account.Get(h.state, addr)
}

func (h *Handler) isVerified(params json.RawMessage) (any, error) {
	addr, err := bindAddress(params)
	if err != nil {
		return nil, err
	}
	return account.IsVerified(h.state, addr)
}

func (h *Handler) getPlayerAt(params json.RawMessage) (any, error) {
	var p struct {
		Index *uint64 `json:"index"`
	}
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if p.Index == nil {
		return nil, invalidParams("index is required")
	}
	return h.state.PlayerAt(*p.Index)
}

// CreatureView is a creature together with its current owner.
type CreatureView struct {
	*core.Creature
	Owner string `json:"owner"`
}

func (h *Handler) getCreature(params json.RawMessage) (any, error) {
	id, err := bindID(params)
	if err != nil {
		return nil, err
	}
	c, err := creature.Get(h.state, id)
	if err != nil {
		return nil, err
	}
	owner, err := creature.OwnerOf(h.state, id)
	if err != nil {
		return nil, err
	}
	return CreatureView{Creature: c, Owner: owner}, nil
}

func (h *Handler) ownerOf(params json.RawMessage) (any, error) {
	id, err := bindID(params)
	if err != nil {
		return nil, err
	}
	return creature.OwnerOf(h.state, id)
}

func (h *Handler) getCreaturesByOwner(params json.RawMessage) (any, error) {
	var p struct {
		Owner string `json:"owner"`
	}
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if p.Owner == "" {
		return nil, invalidParams("owner is required")
	}
	ids, err := h.indexer.GetCreaturesByOwner(p.Owner)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint64{}
	}
	return ids, nil
}

type pairParams struct {
	Hash string `json:"hash"`
	A    string `json:"a"`
	B    string `json:"b"`
}

// bindPair accepts either an explicit hash or the two player identities.
func bindPair(params json.RawMessage) (string, error) {
	var p pairParams
	if err := bind(params, &p); err != nil {
		return "", err
	}
	if p.Hash != "" {
		return p.Hash, nil
	}
	if p.A == "" || p.B == "" {
		return "", invalidParams("hash or both a and b are required")
	}
	return core.ChallengeHash(p.A, p.B), nil
}

func (h *Handler) challengeHash(params json.RawMessage) (any, error) {
	var p pairParams
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if p.A == "" || p.B == "" {
		return nil, invalidParams("a and b are required")
	}
	return core.ChallengeHash(p.A, p.B), nil
}

// ChallengeView reports a pair's challenge state and, while one is open,
// the committed creatures.
type ChallengeView struct {
	Hash  string             `json:"hash"`
	State string             `json:"state"`
	Mons  *core.MonsInBattle `json:"mons,omitempty"`
}

func (h *Handler) getChallenge(params json.RawMessage) (any, error) {
	hash, err := bindPair(params)
	if err != nil {
		return nil, err
	}
	st, err := h.state.GetChallengeState(hash)
	if err != nil {
		return nil, err
	}
	view := ChallengeView{Hash: hash, State: st.String()}
	if st != core.ChallengeNone {
		mib, err := h.state.GetMonsInBattle(hash)
		if err != nil {
			return nil, err
		}
		view.Mons = mib
	}
	return view, nil
}

func (h *Handler) getMonsInBattle(params json.RawMessage) (any, error) {
	hash, err := bindPair(params)
	if err != nil {
		return nil, err
	}
	mib, err := h.state.GetMonsInBattle(hash)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ierrors.Newf(ierrors.CodeNoChallenge, "no open challenge for %s", hash)
	}
	return mib, err
}

func (h *Handler) getChallengesByPlayer(params json.RawMessage) (any, error) {
	var p struct {
		Player string `json:"player"`
	}
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if p.Player == "" {
		return nil, invalidParams("player is required")
	}
	hashes, err := h.indexer.GetChallengesByPlayer(p.Player)
	if err != nil {
		return nil, err
	}
	if hashes == nil {
		hashes = []string{}
	}
	return hashes, nil
}

func (h *Handler) getReceipt(params json.RawMessage) (any, error) {
	var p struct {
		TxID string `json:"tx_id"`
	}
	if err := bind(params, &p); err != nil {
		return nil, err
	}
	if p.TxID == "" {
		return nil, invalidParams("tx_id is required")
	}
	return h.state.GetReceipt(p.TxID)
}

// SendTxResult is returned by sendTx.
type SendTxResult struct {
	TxID string `json:"tx_id"`
}

func (h *Handler) sendTx(params json.RawMessage) (any, error) {
	var tx core.Transaction
	if err := bind(params, &tx); err != nil {
		return nil, err
	}
	if tx.ChainID != h.chainID {
		return nil, invalidParams("chain ID mismatch: got %q want %q", tx.ChainID, h.chainID)
	}
	// The client-provided ID is not trusted.
	tx.ID = tx.Hash()
	if err := h.mempool.Add(&tx); err != nil {
		return nil, &Error{Code: CodeTxRejected, Message: err.Error()}
	}
	return SendTxResult{TxID: tx.ID}, nil
}
