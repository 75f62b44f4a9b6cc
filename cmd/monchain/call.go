package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tolelom/monchain/rpc"
)

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Invoke a read-only JSON-RPC method",
	Example: `  monchain call getBlockHeight
  monchain call getCreature '{"id": 3}'
  monchain call getChallenge '{"a": "<pubkey>", "b": "<pubkey>"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func runCall(cmd *cobra.Command, args []string) error {
	var params any
	if len(args) == 2 {
		raw := json.RawMessage(args[1])
		if !json.Valid(raw) {
			return fmt.Errorf("params must be valid JSON")
		}
		params = raw
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
	defer cancel()

	var result json.RawMessage
	if err := rpc.NewClient(rpcURL, rpcToken).Call(ctx, args[0], params, &result); err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}
