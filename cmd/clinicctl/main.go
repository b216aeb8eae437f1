// Command clinicctl runs clinic maintenance tasks against the configured
// storage: reports, exports, backups, print batches and seeding.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
