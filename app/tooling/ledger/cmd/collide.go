package cmd

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	prefix      int
	base        string
	maxAttempts uint64
	collideTime time.Duration
)

var collideCmd = &cobra.Command{
	Use:   "collide",
	Short: "Search for two inputs whose digests share a prefix",
	RunE:  collideRun,
}

func init() {
	rootCmd.AddCommand(collideCmd)
	collideCmd.Flags().IntVarP(&prefix, "prefix", "p", 4, "Number of leading hex characters that must match.")
	collideCmd.Flags().StringVarP(&base, "base", "b", "blockchain", "Text the nonce is appended to.")
	collideCmd.Flags().Uint64Var(&maxAttempts, "max", 10_000_000, "Maximum number of inputs to hash.")
	collideCmd.Flags().DurationVar(&collideTime, "deadline", time.Minute, "Maximum time to search.")
}

func collideRun(cmd *cobra.Command, args []string) error {
	h, err := hasher()
	if err != nil {
		return err
	}

	ev, sync, err := evHandler()
	if err != nil {
		return err
	}
	defer sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), collideTime)
	defer cancel()

	pterm.DefaultSection.Printfln("Searching for a %d character %s prefix collision", prefix, h.Algorithm())

	col, err := h.FindPrefixCollision(ctx, base, prefix, maxAttempts, ev)
	if err != nil {
		return err
	}

	data := pterm.TableData{
		{"Input", "Nonce", "Digest"},
		{col.A.Input, pterm.Sprint(col.A.Nonce), col.A.Hash},
		{col.B.Input, pterm.Sprint(col.B.Nonce), col.B.Hash},
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	pterm.Success.Printfln("prefix %s found after %d attempts in %v", col.Prefix, col.Attempts, col.Elapsed.Round(time.Millisecond))

	return nil
}
