package cmd

import (
	"strings"

	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var against string

var digestCmd = &cobra.Command{
	Use:   "digest <text>...",
	Short: "Hash text with every supported algorithm",
	Args:  cobra.MinimumNArgs(1),
	RunE:  digestRun,
}

func init() {
	rootCmd.AddCommand(digestCmd)
	digestCmd.Flags().StringVar(&against, "against", "", "Second text to compare digests with.")
}

func digestRun(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	data := pterm.TableData{{"Algorithm", "Digest"}}
	if against != "" {
		data[0] = append(data[0], "Against", "Differing")
	}

	for _, alg := range digest.Algorithms() {
		h, err := digest.New(alg)
		if err != nil {
			return err
		}

		a := h.Sum([]byte(text))
		row := []string{string(alg), a}

		if against != "" {
			b := h.Sum([]byte(against))
			row = append(row, b, pterm.Sprint(digest.Diff(a, b)))
		}

		data = append(data, row)
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
