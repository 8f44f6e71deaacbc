// Command chaind runs the chain-controller as a standalone process: it
// loads a genesis (or starts a fakenet), opens the state store and block
// log, and serves Prometheus metrics, blocking until it receives an
// interrupt. Feeding it blocks and transactions is left to whatever
// transport a deployment wires in front of the resulting Controller — this
// binary only proves out the controller's own lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/asset-chain/chain-controller/internal/launcher"
)

func main() {
	if err := launcher.Launch(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "chaind:", err)
		os.Exit(1)
	}
}
