package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tolelom/monchain/core"
	ierrors "github.com/tolelom/monchain/internal/errors"
)

// Client calls a node's JSON-RPC endpoint. Errors reported by the node are
// returned as *Error.
type Client struct {
	url       string
	authToken string
	http      *http.Client
	nextID    atomic.Int64
}

// NewClient returns a Client for url (for example "http://127.0.0.1:8545/").
func NewClient(url, authToken string) *Client {
	return &Client{
		url:       url,
		authToken: authToken,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Call invokes method with params and decodes the result into result,
// which may be nil.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		raw = data
	}
	body, err := json.Marshal(Request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  raw,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http status %s", method, httpResp.Status)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// SendTx submits a signed transaction and returns its server-computed ID.
func (c *Client) SendTx(ctx context.Context, tx *core.Transaction) (string, error) {
	var out SendTxResult
	if err := c.Call(ctx, "sendTx", tx, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

// BlockHeight returns the node's tip height.
func (c *Client) BlockHeight(ctx context.Context) (int64, error) {
	var h int64
	err := c.Call(ctx, "getBlockHeight", nil, &h)
	return h, err
}

// Nonce returns the next nonce address must sign with.
func (c *Client) Nonce(ctx context.Context, address string) (uint64, error) {
	var acc core.Account
	if err := c.Call(ctx, "getAccount", addressParams{Address: address}, &acc); err != nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// Player returns the profile registered for address.
func (c *Client) Player(ctx context.Context, address string) (*core.Player, error) {
	var p core.Player
	if err := c.Call(ctx, "getPlayer", addressParams{Address: address}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Creature returns creature id with its owner.
func (c *Client) Creature(ctx context.Context, id uint64) (*CreatureView, error) {
	view := CreatureView{Creature: &core.Creature{}}
	if err := c.Call(ctx, "getCreature", idParams{ID: &id}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Challenge returns the challenge state for players a and b.
func (c *Client) Challenge(ctx context.Context, a, b string) (*ChallengeView, error) {
	var view ChallengeView
	if err := c.Call(ctx, "getChallenge", pairParams{A: a, B: b}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Receipt returns the receipt for txID.
func (c *Client) Receipt(ctx context.Context, txID string) (*core.Receipt, error) {
	var r core.Receipt
	if err := c.Call(ctx, "getReceipt", map[string]string{"tx_id": txID}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// WaitReceipt polls for txID's receipt until it appears or ctx is done.
func (c *Client) WaitReceipt(ctx context.Context, txID string, every time.Duration) (*core.Receipt, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		r, err := c.Receipt(ctx, txID)
		if err == nil {
			return r, nil
		}
		if rpcErr, ok := err.(*Error); !ok || rpcErr.Data == nil || rpcErr.Data.Code != ierrors.CodeNotFound.String() {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
