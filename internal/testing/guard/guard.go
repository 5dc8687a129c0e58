// Package guard forces test mode for packages that start runtime dependencies on init.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("STOCKSAAS_TEST_MODE") == "" {
			_ = os.Setenv("STOCKSAAS_TEST_MODE", "1")
		}
	})
}
