// ncictl drives an NFC controller attached over a serial bridge through the
// NCI control plane: bootstrap, discovery, target activation, and raw data
// exchange, with optional Prometheus metrics, OTLP tracing, and an embedded
// audit trail.
package main

import (
	"os"

	"github.com/nfcgo/ncicore/cmd/ncictl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
