// Command blowctl inspects and maintains a blow-storage Badger database.
//
// The database directory is locked while blowstore runs; stop the service
// (or point --db at a copy) before using commands that open it.
//
// Usage:
//
//	blowctl classify "Officer demanded a bribe at the Thika checkpoint"
//	blowctl --db ./data list --sort trust --exclude-flagged
//	blowctl --db ./data show 42
//	blowctl --db ./data seed --count 25
//	blowctl --db ./data check
//	blowctl --db ./data replay --brokers localhost:9092
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
