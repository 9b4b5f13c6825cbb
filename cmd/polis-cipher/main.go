// Package main is the entry point for the polis-cipher binary.
// It exposes the Vigenère codec as a CLI and as an HTTP service.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/polisai/polis-cipher/pkg/logging"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"

	keyEnvVar = "POLIS_CIPHER_KEY"
)

// app carries state shared by the subcommands.
type app struct {
	logLevel  string
	logFormat string
	logger    *slog.Logger

	// isTerminal and readPassword are swapped in tests.
	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
	stdinFd      int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for polis-cipher
func newRootCmd() *cobra.Command {
	a := &app{
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
		stdinFd:      int(os.Stdin.Fd()),
	}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "polis-cipher",
		Short: "Vigenère cipher codec",
		Long: `Encode and decode messages with a Vigenère cipher over the lowercase
English alphabet, generate keys, or run the codec as an HTTP service.

Example:
  polis-cipher encode --key key hello world
  echo rijvs | POLIS_CIPHER_KEY=key polis-cipher decode
  polis-cipher serve --config polis-cipher.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.logger = logging.NewLogger(logging.Config{
				Level:  a.logLevel,
				Format: a.logFormat,
				Output: cmd.ErrOrStderr(),
			})
			slog.SetDefault(a.logger)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.logLevel, "log-level", "l", defaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", defaultLogFormat, "Log format (json, text)")

	rootCmd.AddCommand(
		a.codecCmd(encodeDirection),
		a.codecCmd(decodeDirection),
		a.keygenCmd(),
		a.serveCmd(),
	)
	return rootCmd
}
