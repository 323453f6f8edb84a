package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate SHA256 hash for an API key",
	Long: `Generate a SHA256 hash of an agent API key, in the exact hex form
identifier.HashAPIKey produces and agent.Store.GetByAPIKeyHash
compares against on lookup.

Example:
  mandate-authority hash-key "my-secret-api-key"
  # Output: 7d5e8c...

Security note: The key will appear in shell history.
Consider clearing history after use or using an environment variable:
  mandate-authority hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		hash := sha256.Sum256([]byte(key))
		fmt.Println(hex.EncodeToString(hash[:]))
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
