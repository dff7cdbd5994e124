package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/minichain/foundation/blockchain/consensus/pow"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	difficulty   uint
	workers      int
	condition    string
	powTamper    int
	mineDeadline time.Duration
)

var powCmd = &cobra.Command{
	Use:   "pow",
	Short: "Mine a proof of work chain",
	RunE:  powRun,
}

func init() {
	rootCmd.AddCommand(powCmd)
	powCmd.Flags().UintVarP(&difficulty, "difficulty", "d", 3, "Number of leading zeros a hash requires.")
	powCmd.Flags().IntVarP(&workers, "workers", "w", 1, "Goroutines searching for a nonce.")
	powCmd.Flags().StringVarP(&condition, "condition", "c", "", "Custom condition in the form charat:<index>:<char>.")
	powCmd.Flags().IntVarP(&powTamper, "tamper", "t", 1, "Index of the block to tamper with, -1 to skip.")
	powCmd.Flags().DurationVar(&mineDeadline, "deadline", time.Minute, "Maximum time to mine each block.")
}

func powRun(cmd *cobra.Command, args []string) error {
	h, err := hasher()
	if err != nil {
		return err
	}

	ev, sync, err := evHandler()
	if err != nil {
		return err
	}
	defer sync()

	options := []func(*pow.POW){
		pow.WithWorkers(workers),
		pow.WithEvHandler(ev),
	}

	if condition != "" {
		cond, err := parseCondition(condition)
		if err != nil {
			return err
		}
		options = append(options, pow.WithCondition(cond))
	}

	sealer := pow.New(difficulty, options...)

	chain, err := database.New(database.Config{
		Sealer:    sealer,
		Hasher:    h,
		EvHandler: ev,
	})
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("Proof of work: difficulty %d, workers %d, algorithm %s", difficulty, sealer.Workers(), h.Algorithm())

	genesis := func(ctx context.Context) (database.Block, error) {
		return chain.Genesis(ctx, "Genesis Block (PoW)")
	}
	if _, err := withDeadline(cmd.Context(), mineDeadline, genesis); err != nil {
		return err
	}

	for _, tx := range transfers {
		start := time.Now()
		blk, err := withDeadline(cmd.Context(), mineDeadline, func(ctx context.Context) (database.Block, error) {
			return chain.Append(ctx, tx)
		})
		if err != nil {
			return err
		}
		pterm.Info.Printfln("mined block %d nonce %d in %v", blk.Header.Index, blk.Header.Nonce, time.Since(start).Round(time.Millisecond))
	}

	if err := printBlocks(chain); err != nil {
		return err
	}

	if !printValidity(chain) {
		return fmt.Errorf("freshly mined chain failed validation")
	}

	return tamper(chain, powTamper)
}

// withDeadline runs a single seal under its own deadline.
func withDeadline(ctx context.Context, deadline time.Duration, seal func(ctx context.Context) (database.Block, error)) (database.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	return seal(ctx)
}

// parseCondition turns charat:<index>:<char> into a condition.
func parseCondition(s string) (pow.Condition, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] != "charat" || len(parts[2]) != 1 {
		return nil, fmt.Errorf("condition %q is not in the form charat:<index>:<char>", s)
	}

	index, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("condition %q index: %w", s, err)
	}

	return pow.CharAt(index, parts[2][0]), nil
}
