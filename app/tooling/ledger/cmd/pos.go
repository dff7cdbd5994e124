package cmd

import (
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/consensus/pos"
	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/ardanlabs/minichain/foundation/blockchain/validator"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	validatorSpecs []string
	posTamper      int
)

var posCmd = &cobra.Command{
	Use:   "pos",
	Short: "Build a proof of stake chain",
	RunE:  posRun,
}

func init() {
	rootCmd.AddCommand(posCmd)
	posCmd.Flags().StringSliceVar(&validatorSpecs, "validator", []string{"Alice:5", "Bob:10", "Charlie:1"}, "Validators in the form name:stake.")
	posCmd.Flags().IntVarP(&posTamper, "tamper", "t", 1, "Index of the block to tamper with, -1 to skip.")
}

func posRun(cmd *cobra.Command, args []string) error {
	h, err := hasher()
	if err != nil {
		return err
	}

	ev, sync, err := evHandler()
	if err != nil {
		return err
	}
	defer sync()

	registry, err := registry()
	if err != nil {
		return err
	}

	sealer, err := pos.New(registry, pos.WithEvHandler(ev))
	if err != nil {
		return err
	}

	chain, err := database.New(database.Config{
		Sealer:    sealer,
		Hasher:    h,
		EvHandler: ev,
	})
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("Proof of stake: %d validators, total stake %s", registry.Len(), registry.TotalStake())

	if _, err := chain.Genesis(cmd.Context(), "Genesis Block (PoS)"); err != nil {
		return err
	}

	for _, tx := range transfers {
		blk, err := chain.Append(cmd.Context(), tx)
		if err != nil {
			return err
		}
		pterm.Info.Printfln("block %d sealed by %s", blk.Header.Index, blk.Header.ValidatorID)
	}

	if err := printBlocks(chain); err != nil {
		return err
	}

	if !printValidity(chain) {
		return fmt.Errorf("freshly sealed chain failed validation")
	}

	return tamper(chain, posTamper)
}

// registry constructs the validator registry from the validator flags.
func registry() (*validator.Registry, error) {
	validators := make([]validator.Validator, len(validatorSpecs))
	for i, spec := range validatorSpecs {
		v, err := validator.Parse(spec)
		if err != nil {
			return nil, err
		}
		validators[i] = v
	}

	return validator.NewRegistry(validators)
}
