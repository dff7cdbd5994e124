package cmd

import (
	"fmt"

	"github.com/ardanlabs/minichain/foundation/blockchain/digest"
	"github.com/ardanlabs/minichain/foundation/blockchain/merkle"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var prove int

var merkleCmd = &cobra.Command{
	Use:   "merkle [payload]...",
	Short: "Fingerprint a batch of payloads with a merkle root and prove membership",
	RunE:  merkleRun,
}

func init() {
	rootCmd.AddCommand(merkleCmd)
	merkleCmd.Flags().IntVar(&prove, "prove", 0, "Index of the payload to prove, -1 to skip.")
}

func merkleRun(cmd *cobra.Command, args []string) error {
	h, err := hasher()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		for _, tx := range transfers {
			s, err := digest.Canonical(tx)
			if err != nil {
				return err
			}
			args = append(args, s)
		}
	}

	leaves := make([]merkle.Text, len(args))
	for i, arg := range args {
		leaves[i] = merkle.Text(arg)
	}

	tree, err := merkle.NewTree(leaves, merkle.WithHasher[merkle.Text](h))
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("Merkle tree of %d payloads", len(leaves))

	root := pterm.TreeNode{Text: short(tree.RootHex())}
	levels := tree.Levels()
	for i := len(levels) - 2; i >= 0; i-- {
		root.Children = append(root.Children, pterm.TreeNode{Text: fmt.Sprintf("level %d: %d hashes", i, len(levels[i]))})
	}
	if err := pterm.DefaultTree.WithRoot(root).Render(); err != nil {
		return err
	}

	pterm.Info.Printfln("root %s", tree.RootHex())

	if prove < 0 || prove >= len(leaves) {
		return nil
	}

	proof, err := tree.Proof(leaves[prove])
	if err != nil {
		return err
	}

	data := pterm.TableData{{"Step", "Position", "Sibling"}}
	for i, step := range proof {
		data = append(data, []string{pterm.Sprint(i), string(step.Position), step.Hash})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	leaf, err := leaves[prove].Hash(h)
	if err != nil {
		return err
	}

	if !merkle.VerifyProof(h, leaf, proof, tree.RootHex()) {
		return fmt.Errorf("proof for payload %d does not reach the root", prove)
	}

	pterm.Success.Printfln("payload %d is proven part of the root", prove)

	return nil
}
