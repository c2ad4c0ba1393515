package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wordstory/internal/domain"
	"wordstory/internal/infra/config"
)

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt VALUE",
		Short: "Encrypt a secret for use as an enc: config value",
		Long: `Encrypt a secret, such as server.token, with the passphrase in
WORDSTORY_CONFIG_KEY. Paste the output into the config file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := os.Getenv(config.KeyEnv)
			if key == "" {
				return fmt.Errorf("%w: %s is not set", domain.ErrEncryption, config.KeyEnv)
			}
			enc, err := config.EncryptValue(args[0], key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "enc:"+enc)
			return nil
		},
	}
}
