package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tolelom/monchain/core"
	"github.com/tolelom/monchain/rpc"
	"github.com/tolelom/monchain/wallet"
)

var (
	chainID string
	waitTx  bool

	playerName   string
	avatarURL    string
	ownerAddr    string
	species      []string
	genders      []string
	catalogueIDs []uint
	seed         uint64
	monID        uint64
	monA         uint64
	monB         uint64
	entropy      uint64
	opponentAddr string
	challengerID string
	challengeKey string
)

// txCmd groups one subcommand per ledger operation. Each signs with --key,
// fetches the sender's nonce from the node and submits via sendTx.
var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Sign and submit a transaction",
}

func init() {
	defaultChain := os.Getenv("MONCHAIN_CHAIN_ID")
	if defaultChain == "" {
		defaultChain = "monchain-dev"
	}
	txCmd.PersistentFlags().StringVar(&chainID, "chain-id", defaultChain, "chain id to sign for")
	txCmd.PersistentFlags().BoolVar(&waitTx, "wait", true, "wait for the receipt")

	registerCmd.Flags().StringVar(&playerName, "name", "", "player name (required)")
	registerCmd.Flags().StringVar(&avatarURL, "avatar", "", "avatar URL")
	_ = registerCmd.MarkFlagRequired("name")

	grantCmd.Flags().StringVar(&ownerAddr, "owner", "", "recipient public key (required)")
	grantCmd.Flags().StringSliceVar(&species, "species", nil, "species names")
	grantCmd.Flags().StringSliceVar(&genders, "genders", nil, "genders, one per species")
	grantCmd.Flags().UintSliceVar(&catalogueIDs, "catalogue", nil, "catalogue ids, one per species")
	grantCmd.Flags().Uint64Var(&seed, "seed", 0, "trait seed")
	_ = grantCmd.MarkFlagRequired("owner")

	battleReadyCmd.Flags().Uint64Var(&monID, "mon", 0, "creature id")
	_ = battleReadyCmd.MarkFlagRequired("mon")

	for _, c := range []*cobra.Command{startBattleCmd, settleBattleCmd} {
		c.Flags().Uint64Var(&monA, "a", 0, "first creature id")
		c.Flags().Uint64Var(&monB, "b", 0, "second creature id")
		_ = c.MarkFlagRequired("a")
		_ = c.MarkFlagRequired("b")
	}
	settleBattleCmd.Flags().Uint64Var(&entropy, "entropy", 0, "arbiter entropy")

	challengeCmd.Flags().StringVar(&opponentAddr, "opponent", "", "opponent public key (required)")
	challengeCmd.Flags().Uint64Var(&monID, "mon", 0, "creature to commit")
	_ = challengeCmd.MarkFlagRequired("opponent")
	_ = challengeCmd.MarkFlagRequired("mon")

	acceptCmd.Flags().StringVar(&challengerID, "challenger", "", "challenger public key (required)")
	acceptCmd.Flags().Uint64Var(&monID, "mon", 0, "creature to commit")
	_ = acceptCmd.MarkFlagRequired("challenger")
	_ = acceptCmd.MarkFlagRequired("mon")

	settleChallengeCmd.Flags().StringVar(&challengeKey, "hash", "", "challenge hash (required)")
	settleChallengeCmd.Flags().Uint64Var(&entropy, "entropy", 0, "arbiter entropy")
	_ = settleChallengeCmd.MarkFlagRequired("hash")

	txCmd.AddCommand(registerCmd, grantCmd, battleReadyCmd, startBattleCmd, settleBattleCmd,
		challengeReadyCmd, challengeCmd, acceptCmd, settleChallengeCmd)
}

// buildFunc signs one transaction for w at nonce.
type buildFunc func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error)

func txCommand(use, short string, build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return submit(cmd, build)
		},
	}
}

var registerCmd = txCommand("register", "Create a player profile", func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error) {
	return w.Register(nonce, playerName, avatarURL)
})

var grantCmd = txCommand("grant-starters", "Grant a starter set (arbiter)", func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error) {
	ids := make([]uint64, len(catalogueIDs))
	for i, id := range catalogueIDs {
		ids[i] = uint64(id)
	}
	return w.GrantStarters(nonce, core.GrantStartersPayload{
		Species:      species,
		Genders:      genders,
		CatalogueIDs: ids,
		Seed:         seed,
		Owner:        ownerAddr,
	})
})

var battleReadyCmd = txCommand("battle-ready", "Mark a creature battle ready", func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error) {
	return w.SetBattleReady(nonce, monID)
})

var startBattleCmd = txCommand("start-battle", "Start a direct battle", func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error) {
	return w.StartBattle(nonce, monA, monB)
})

var settleBattleCmd = txCommand("settle-battle", "Settle a direct battle (arbiter)", func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error) {
	return w.SettleBattle(nonce, monA, monB, entropy)
})

var challengeReadyCmd = txCommand("challenge-ready", "Opt in to challenges", func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error) {
	return w.SetChallengeReady(nonce)
})

var challengeCmd = txCommand("challenge", "Challenge another player", func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error) {
	return w.Challenge(nonce, opponentAddr, monID)
})

var acceptCmd = txCommand("accept", "Accept a challenge", func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error) {
	return w.AcceptChallenge(nonce, challengerID, monID)
})

var settleChallengeCmd = txCommand("settle-challenge", "Settle an accepted challenge (arbiter)", func(w *wallet.Wallet, nonce uint64) (*core.Transaction, error) {
	return w.SettleChallenge(nonce, challengeKey, entropy)
})

func submit(cmd *cobra.Command, build buildFunc) error {
	priv, err := wallet.LoadKey(keyPath, keystorePassword())
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	w := wallet.New(priv, chainID)
	client := rpc.NewClient(rpcURL, rpcToken)

	ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
	defer cancel()

	nonce, err := client.Nonce(ctx, w.PubKey())
	if err != nil {
		return err
	}
	tx, err := build(w, nonce)
	if err != nil {
		return err
	}
	id, err := client.SendTx(ctx, tx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Submitted %s tx %s (nonce %d)\n", tx.Type, id, nonce)
	if !waitTx {
		return nil
	}

	receipt, err := client.WaitReceipt(ctx, id, 500*time.Millisecond)
	if err != nil {
		return fmt.Errorf("wait for receipt: %w", err)
	}
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	if receipt.Status != core.ReceiptOK {
		return fmt.Errorf("transaction rejected: %s", receipt.Code)
	}
	return nil
}
