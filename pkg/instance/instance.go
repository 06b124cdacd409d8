package instance

import "os"

// GetID returns the process instance identifier used in logs and lock ownership.
func GetID() string {
	for _, key := range []string{"CARESTAFF_INSTANCE_ID", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
