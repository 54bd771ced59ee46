package instance

import "os"

// ID names the running process for logs: the platform dyno, then the
// container hostname, then "local".
func ID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
