// Package testing flips the service into test mode. Test packages import it
// for its side effect.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("SHOPREPORTS_TEST_MODE", "1")
		// Keep stray local configuration from reaching real services.
		if os.Getenv("SHOP_API_URL") == "" {
			_ = os.Setenv("SHOP_API_URL", "http://127.0.0.1:0")
		}
		if os.Getenv("REDIS_ADDR") == "" {
			_ = os.Setenv("REDIS_ADDR", "127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
