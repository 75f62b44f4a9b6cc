// Package consensus implements Proof-of-Authority block production.
// Validators propose blocks in round-robin order; with a single configured
// validator the local node proposes every block.
package consensus

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tolelom/monchain/config"
	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/crypto"
	"github.com/tolelom/monchain/events"
	ierrors "github.com/tolelom/monchain/internal/errors"
	"github.com/tolelom/monchain/vm"
)

const defaultMaxBlockTxs = 500

// PoA is the Proof-of-Authority block producer.
type PoA struct {
	cfg     *config.Config
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey
}

// New creates a PoA engine for the local validator identified by privKey.
func New(
	cfg *config.Config,
	bc *core.Blockchain,
	state core.State,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
) *PoA {
	return &PoA{
		cfg:     cfg,
		bc:      bc,
		state:   state,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		privKey: privKey,
		pubKey:  privKey.Public(),
	}
}

// IsProposer reports whether this node should propose the next block.
func (p *PoA) IsProposer() bool {
	if len(p.cfg.Validators) == 0 {
		return false
	}
	idx := int(p.bc.Height()+1) % len(p.cfg.Validators)
	return p.cfg.Validators[idx] == p.pubKey.Hex()
}

// ProduceBlock executes pending transactions in mempool order and commits
// the ones that succeeded as the next block. A rejected transaction is
// dropped from the mempool with a failed receipt so it cannot stall the
// chain; its writes were already reverted by the executor.
func (p *PoA) ProduceBlock() (*core.Block, error) {
	if !p.IsProposer() {
		return nil, errors.New("not the proposer for this round")
	}

	limit := p.cfg.MaxBlockTxs
	if limit <= 0 {
		limit = defaultMaxBlockTxs
	}
	pending := p.mempool.Pending(limit)

	prevHash, height := config.GenesisHash, int64(1)
	if tip := p.bc.Tip(); tip != nil {
		prevHash, height = tip.Hash, tip.Header.Height+1
	}
	block := core.NewBlock(p.cfg.Genesis.ChainID, height, prevHash, p.pubKey.Hex(), nil)

	var (
		included []*core.Transaction
		attempts = make([]string, 0, len(pending))
	)
	for _, tx := range pending {
		attempts = append(attempts, tx.ID)
		receipt := &core.Receipt{
			TxID:        tx.ID,
			Type:        tx.Type,
			From:        tx.From,
			BlockHeight: height,
			Status:      core.ReceiptOK,
		}
		if err := p.exec.ExecuteTx(block, tx); err != nil {
			receipt.Status = core.ReceiptFailed
			receipt.Code = string(ierrors.GetCode(err))
			receipt.Error = err.Error()
			receipt.Meta = ierrors.MetaOf(err)
			log.Printf("[consensus] tx %s (%s) rejected: %v", short(tx.ID), tx.Type, err)
			p.emitter.Emit(events.Event{
				Type:        events.EventTxRejected,
				TxID:        tx.ID,
				BlockHeight: height,
				Data:        map[string]any{"type": string(tx.Type), "code": receipt.Code, "error": receipt.Error},
			})
		} else {
			included = append(included, tx)
		}
		if err := p.state.SetReceipt(receipt); err != nil {
			p.state.Discard()
			return nil, fmt.Errorf("store receipt: %w", err)
		}
	}

	block.Transactions = included
	block.Header.TxRoot = core.ComputeTxRoot(included)
	// Root from the write buffer before flushing, so a failed AddBlock
	// leaves nothing persisted.
	block.Header.StateRoot = p.state.ComputeRoot()
	block.Sign(p.privKey)

	if err := p.bc.AddBlock(block); err != nil {
		p.state.Discard()
		return nil, fmt.Errorf("add block: %w", err)
	}
	if err := p.state.Commit(); err != nil {
		log.Fatalf("[consensus] FATAL: block %d stored but state commit failed: %v",
			block.Header.Height, err)
	}

	p.emitter.Emit(events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: block.Header.Height,
		Data: map[string]any{
			"hash":     block.Hash,
			"txs":      len(included),
			"rejected": len(attempts) - len(included),
		},
	})
	p.mempool.Remove(attempts)
	return block, nil
}

// VerifyProposer checks that block was signed by the validator scheduled
// for its height. The node runs it on the stored tip at startup.
func (p *PoA) VerifyProposer(block *core.Block) error {
	if block.Header.Height == 0 {
		if !config.IsGenesisHash(block.Header.PrevHash) {
			return errors.New("block 0 must reference the genesis prev-hash")
		}
	} else {
		if len(p.cfg.Validators) == 0 {
			return errors.New("no validators configured")
		}
		expected := p.cfg.Validators[int(block.Header.Height)%len(p.cfg.Validators)]
		if block.Header.Proposer != expected {
			return fmt.Errorf("wrong proposer: got %s want %s", block.Header.Proposer, expected)
		}
	}
	pub, err := crypto.PubKeyFromHex(block.Header.Proposer)
	if err != nil {
		return fmt.Errorf("invalid proposer pubkey: %w", err)
	}
	if err := block.Verify(pub); err != nil {
		return fmt.Errorf("block signature invalid: %w", err)
	}
	return nil
}

// Run produces blocks every interval until done is closed.
func (p *PoA) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if !p.IsProposer() {
				continue
			}
			if _, err := p.ProduceBlock(); err != nil {
				log.Printf("[consensus] produce block error: %v", err)
			}
		}
	}
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
