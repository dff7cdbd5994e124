// Package cmd contains the ledger commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
	"github.com/ardanlabs/minichain/foundation/logger"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	verbose   bool
	algorithm string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log chain events.")
	rootCmd.PersistentFlags().StringVarP(&algorithm, "algorithm", "a", string(digest.SHA256), fmt.Sprintf("Hash algorithm %v.", digest.Algorithms()))
}

var rootCmd = &cobra.Command{
	Use:           "ledger",
	Short:         "Build and inspect proof of work and proof of stake chains",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command selected on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// hasher returns the hasher selected by the algorithm flag.
func hasher() (digest.Hasher, error) {
	alg, err := digest.ParseAlgorithm(algorithm)
	if err != nil {
		return digest.Hasher{}, err
	}

	return digest.New(alg)
}

// evHandler returns the event handler for the chain packages. Events are
// only logged when verbose output is requested.
func evHandler() (database.EventHandler, func(), error) {
	if !verbose {
		return func(string, ...any) {}, func() {}, nil
	}

	log, err := logger.New("LEDGER", "stderr")
	if err != nil {
		return nil, nil, err
	}

	return logger.EvHandler(log, "00000000-0000-0000-0000-000000000000"), func() { log.Sync() }, nil
}
