// Package gcp holds the pieces shared by the Pub/Sub and BigQuery clients.
package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
)

// ClientOptions picks explicit credentials when configured. Inline JSON wins over
// a credentials file; with neither, the SDK falls back to ADC.
func ClientOptions(cfg config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(cfg.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(cfg.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// ProjectID returns the trimmed project id or ok=false when it is blank.
func ProjectID(cfg config.GCPConfig) (string, bool) {
	id := strings.TrimSpace(cfg.ProjectID)
	return id, id != ""
}
