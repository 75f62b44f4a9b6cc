package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tolelom/monchain/config"
	"github.com/tolelom/monchain/consensus"
	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/events"
	"github.com/tolelom/monchain/indexer"
	"github.com/tolelom/monchain/rpc"
	"github.com/tolelom/monchain/storage"
	"github.com/tolelom/monchain/vm"
	"github.com/tolelom/monchain/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/monchain/vm/modules/account"
	_ "github.com/tolelom/monchain/vm/modules/battle"
	_ "github.com/tolelom/monchain/vm/modules/challenge"
	_ "github.com/tolelom/monchain/vm/modules/creature"
)

var (
	configPath      string
	writeConfigPath string
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a validator node",
	Long: `Run a validator node: open the configured storage backend, create or
check the genesis block, produce blocks on the PoA schedule and serve
JSON-RPC plus the /ws event feed.`,
	Args: cobra.NoArgs,
	RunE: runNode,
}

func init() {
	nodeCmd.Flags().StringVar(&configPath, "config", "config.json", "path to config file")
	nodeCmd.Flags().StringVar(&writeConfigPath, "write-config", "", "write the effective config to this path and exit")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		log.Printf("Config file not found at %s, using defaults.", path)
		cfg = config.DefaultConfig()
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openDB opens the backend selected by cfg.Storage.
func openDB(cfg *config.Config) (storage.DB, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		return storage.OpenRedisDB(cfg.Storage.RedisAddr, &storage.RedisOptions{
			Namespace: cfg.Storage.RedisNamespace,
			Timeout:   5 * time.Second,
		})
	case config.BackendSQLite:
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.DataDir, "chain.sqlite")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
		return storage.OpenSQLiteDB(path)
	default:
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	}
}

func runNode(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if writeConfigPath != "" {
		if err := config.Save(cfg, writeConfigPath); err != nil {
			return err
		}
		log.Printf("Config written to %s", writeConfigPath)
		return nil
	}

	privKey, err := wallet.LoadKey(keyPath, keystorePassword())
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	self := privKey.Public().Hex()
	if len(cfg.Validators) == 0 {
		cfg.Validators = []string{self}
		log.Printf("No validators configured, running as the only validator")
	}
	if cfg.Arbiter == "" {
		cfg.Arbiter = self
		log.Printf("No arbiter configured, the validator key acts as arbiter")
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	defer db.Close()
	log.Printf("Storage backend: %s", cfg.Storage.Backend)

	state := storage.NewStateDB(db)
	bc := core.NewBlockchain(storage.NewBlockStore(db))
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	mempool := core.NewMempool(cfg.Genesis.ChainID)
	exec := vm.NewExecutor(state, emitter, cfg.Arbiter)
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey)

	if tip := bc.Tip(); tip == nil {
		genesis, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesis); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		log.Printf("Genesis block committed: %s", genesis.Hash)
	} else {
		if tip.Header.ChainID != cfg.Genesis.ChainID {
			return fmt.Errorf("stored chain %q does not match configured %q", tip.Header.ChainID, cfg.Genesis.ChainID)
		}
		if err := poa.VerifyProposer(tip); err != nil {
			return fmt.Errorf("stored tip %d: %w", tip.Header.Height, err)
		}
		log.Printf("Resuming at height %d (%s)", tip.Header.Height, tip.Hash)
	}

	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	stream := rpc.NewStream(emitter)
	rpcServer := rpc.NewServer(rpcAddr, rpc.NewHandler(bc, mempool, state, idx, cfg.Genesis.ChainID), stream, cfg.RPCAuthToken)
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer rpcServer.Stop()
	log.Printf("RPC listening on %s (events on /ws)", rpcServer.Addr())
	if cfg.RPCAuthToken != "" {
		log.Println("RPC Bearer token authentication enabled")
	}

	interval := time.Duration(cfg.BlockIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poa.Run(interval, done)
	}()
	log.Printf("Consensus running (validator: %s, arbiter: %s)", self, cfg.Arbiter)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Println("Shutting down...")

	// Stop consensus first so no block is written during teardown.
	close(done)
	wg.Wait()
	log.Println("Shutdown complete.")
	return nil
}

