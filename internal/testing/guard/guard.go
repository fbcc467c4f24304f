// Package guard switches binaries into test mode when blank-imported from a
// test, so calling main() returns before dialling any store or queue.
package guard

import (
	"os"
	"sync"
)

const envTestMode = "STOCKLEDGER_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(envTestMode) == "" {
			_ = os.Setenv(envTestMode, "1")
		}
	})
}
