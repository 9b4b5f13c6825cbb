package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/polisai/polis-cipher/pkg/cipher"
)

type codecDirection struct {
	name  string
	short string
	dir   cipher.Direction
}

var (
	encodeDirection = codecDirection{name: "encode", short: "Encode a message", dir: cipher.Forward}
	decodeDirection = codecDirection{name: "decode", short: "Decode a message", dir: cipher.Inverse}
)

func (a *app) codecCmd(d codecDirection) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   d.name + " [message...]",
		Short: d.short,
		Long: d.short + `. The message is taken from the arguments, or from stdin when none
are given. The key comes from --key, then $` + keyEnvVar + `, then an
interactive prompt when stdin is a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := a.resolveKey(cmd, key)
			if err != nil {
				return err
			}
			codec, err := cipher.New(resolved)
			if err != nil {
				return err
			}

			message, err := readMessage(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			a.logger.Debug("Transforming message", "operation", d.dir.String(), "characters", len([]rune(message)))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), codec.Transform(message, d.dir))
			return err
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "Cipher key (letters only are used)")
	return cmd
}

// resolveKey picks the key from the flag, the environment or a no-echo prompt.
func (a *app) resolveKey(cmd *cobra.Command, flagValue string) (string, error) {
	if cmd.Flags().Changed("key") {
		return flagValue, nil
	}
	if value, ok := os.LookupEnv(keyEnvVar); ok {
		return value, nil
	}
	if !a.isTerminal(a.stdinFd) {
		return "", fmt.Errorf("%w: pass --key or set %s", cipher.ErrInvalidKey, keyEnvVar)
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Key: ")
	value, err := a.readPassword(a.stdinFd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return string(value), nil
}

// readMessage joins args with spaces, or reads all of in when args is empty.
// One trailing line ending is dropped from stdin input.
func readMessage(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}
	message := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(message, "\r"), nil
}
