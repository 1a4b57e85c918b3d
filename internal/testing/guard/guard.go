// Package guard switches binaries into test mode when imported by their tests.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("INVOICEDESK_TEST_MODE") == "" {
			_ = os.Setenv("INVOICEDESK_TEST_MODE", "1")
		}
	})
}
