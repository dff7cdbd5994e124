package cmd

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var draws int

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Measure how often each validator is selected",
	RunE:  sampleRun,
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().IntVarP(&draws, "draws", "n", 10_000, "Number of independent selections.")
	sampleCmd.Flags().StringSliceVar(&validatorSpecs, "validator", []string{"Alice:5", "Bob:10", "Charlie:1"}, "Validators in the form name:stake.")
}

func sampleRun(cmd *cobra.Command, args []string) error {
	registry, err := registry()
	if err != nil {
		return err
	}

	shares, err := registry.Sample(draws)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("%d selections, total stake %s", draws, registry.TotalStake())

	data := pterm.TableData{
		{"Validator", "Stake", "Wins", "Observed", "Expected"},
	}
	for _, s := range shares {
		data = append(data, []string{
			s.Validator.Name,
			s.Validator.Stake.String(),
			strconv.Itoa(s.Wins),
			fmt.Sprintf("%.2f%%", s.Observed*100),
			fmt.Sprintf("%.2f%%", s.Expected*100),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
