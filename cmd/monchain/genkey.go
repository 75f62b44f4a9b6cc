package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tolelom/monchain/wallet"
)

var genkeyForce bool

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a key pair and write it to the keystore file",
	Long: `Generate an ed25519 key pair, encrypt it with MONCHAIN_PASSWORD and
write it to --key. The public key is the player or validator identity.`,
	Args: cobra.NoArgs,
	RunE: runGenkey,
}

func init() {
	genkeyCmd.Flags().BoolVar(&genkeyForce, "force", false, "overwrite an existing keystore")
}

func runGenkey(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(keyPath); err == nil && !genkeyForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", keyPath)
	}
	password := keystorePassword()
	if password == "" {
		log.Println("WARNING: MONCHAIN_PASSWORD not set, keystore will use an empty password")
	}
	// The chain id only matters when signing, so any value works here.
	w, err := wallet.Generate("")
	if err != nil {
		return err
	}
	if err := wallet.SaveKey(keyPath, password, w.PrivKey()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Public key: %s\nSaved to: %s\n", w.PubKey(), keyPath)
	return nil
}
