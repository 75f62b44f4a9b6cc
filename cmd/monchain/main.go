// Command monchain runs a monchain node and talks to one over JSON-RPC.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	rpcURL     string
	rpcToken   string
	rpcTimeout time.Duration
	keyPath    string
)

var rootCmd = &cobra.Command{
	Use:   "monchain",
	Short: "Collectible creature battle ledger",
	Long: `monchain is a single-authority ledger for player profiles, creatures,
direct battles and challenges. Run "monchain node" to start a validator and
use the other commands to sign transactions and query a running node.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", "http://127.0.0.1:8545/", "node JSON-RPC endpoint")
	rootCmd.PersistentFlags().StringVar(&rpcToken, "rpc-token", os.Getenv("MONCHAIN_RPC_AUTH_TOKEN"), "bearer token for the RPC endpoint")
	rootCmd.PersistentFlags().DurationVar(&rpcTimeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().StringVar(&keyPath, "key", "validator.key", "path to keystore file")

	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(genkeyCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(callCmd)
}

// keystorePassword reads the password from the environment; flags would
// leak it through the process list.
func keystorePassword() string {
	return os.Getenv("MONCHAIN_PASSWORD")
}
