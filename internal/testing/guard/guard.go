package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TILLWORKS_TEST_MODE") == "" {
			_ = os.Setenv("TILLWORKS_TEST_MODE", "1")
		}
	})
}
