package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-cipher/pkg/keygen"
)

func (a *app) keygenCmd() *cobra.Command {
	var length int

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := keygen.GenerateKey(length)
			if err != nil {
				return err
			}
			a.logger.Debug("Generated key", "length", length)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}

	cmd.Flags().IntVarP(&length, "length", "n", keygen.DefaultLength, "Number of letters in the key")
	return cmd
}
