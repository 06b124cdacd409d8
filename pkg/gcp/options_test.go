package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
)

func TestClientOptions(t *testing.T) {
	assert.Len(t, ClientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/etc/gcp/key.json"}), 1)
	assert.Len(t, ClientOptions(config.GCPConfig{ApplicationCredentials: "/etc/gcp/key.json"}), 1)
	assert.Empty(t, ClientOptions(config.GCPConfig{CredentialsJSON: "  "}))
}

func TestProjectID(t *testing.T) {
	id, ok := ProjectID(config.GCPConfig{ProjectID: " carestaff-prod "})
	assert.True(t, ok)
	assert.Equal(t, "carestaff-prod", id)

	_, ok = ProjectID(config.GCPConfig{})
	assert.False(t, ok)
}
