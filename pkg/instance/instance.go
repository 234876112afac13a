package instance

import (
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// EnvID overrides the generated process identifier.
const EnvID = "STOREFRONT_INSTANCE_ID"

var (
	once      sync.Once
	processID string
)

// GetID returns a stable identifier for this process. It prefers STOREFRONT_INSTANCE_ID,
// then the platform DYNO name, and otherwise generates one on first use.
func GetID() string {
	once.Do(func() {
		processID = resolve(os.Getenv)
	})
	return processID
}

func resolve(getenv func(string) string) string {
	for _, key := range []string{EnvID, "DYNO"} {
		if id := strings.TrimSpace(getenv(key)); id != "" {
			return id
		}
	}
	return "sf-" + uuid.NewString()
}
