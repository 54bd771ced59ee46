package env

import (
	"os"
	"strings"
)

const prefix = "STOREFRONT_"

// Get resolves key from STOREFRONT_<key>, then the bare key, then fallback.
// It serves settings read before config.Load, such as the log format.
func Get(key, fallback string) string {
	for _, name := range []string{prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
