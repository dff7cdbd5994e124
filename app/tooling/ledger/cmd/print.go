package cmd

import (
	"fmt"
	"strconv"

	"github.com/ardanlabs/minichain/foundation/blockchain/database"
	"github.com/pterm/pterm"
)

// transfers are the payloads appended by the chain commands.
var transfers = []map[string]any{
	{"from": "Alice", "to": "Bob", "amount": 10},
	{"from": "Bob", "to": "Charlie", "amount": 5},
	{"from": "Charlie", "to": "Alice", "amount": 2},
}

// printBlocks renders the chain as a table.
func printBlocks(chain *database.Chain) error {
	data := pterm.TableData{
		{"Index", "Timestamp", "Payload", "Prev", "Nonce", "Validator", "Hash"},
	}

	for _, blk := range chain.Blocks() {
		data = append(data, []string{
			strconv.FormatUint(blk.Header.Index, 10),
			blk.Header.TimeStamp.Format("15:04:05.000"),
			string(blk.Header.Payload),
			short(blk.Header.PrevBlockHash),
			strconv.FormatUint(blk.Header.Nonce, 10),
			blk.Header.ValidatorID,
			short(blk.Hash),
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// printValidity reports the outcome of validating the chain.
func printValidity(chain *database.Chain) bool {
	if err := chain.Verify(); err != nil {
		pterm.Error.Printfln("chain is invalid: %s", err)
		return false
	}

	pterm.Success.Printfln("chain of %d blocks is valid", chain.Len())
	return true
}

// tamper replaces the payload of the block at index and shows the chain no
// longer validates.
func tamper(chain *database.Chain, index int) error {
	if index < 0 {
		return nil
	}

	pterm.DefaultSection.Printfln("Tampering with block %d", index)

	err := chain.Tamper(uint64(index), func(b *database.Block) {
		b.Header.Payload = []byte(`"Hacked!"`)
	})
	if err != nil {
		return err
	}

	if printValidity(chain) {
		return fmt.Errorf("tampering with block %d went undetected", index)
	}

	return nil
}

// short abbreviates a hash for display.
func short(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "…"
}
