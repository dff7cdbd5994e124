// This program drives the ledger from the command line. It builds chains
// under either consensus strategy and shows how tampering is detected.
package main

import "github.com/ardanlabs/minichain/app/tooling/ledger/cmd"

func main() {
	cmd.Execute()
}
