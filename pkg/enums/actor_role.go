package enums

import "fmt"

// ActorRole is the role carried in access tokens.
type ActorRole string

const (
	ActorRoleAgencyAdmin ActorRole = "agency_admin"
	ActorRoleSystem      ActorRole = "system"
)

func (r ActorRole) IsValid() bool {
	return r == ActorRoleAgencyAdmin || r == ActorRoleSystem
}

// ParseActorRole converts raw strings into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	role := ActorRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid actor role %q", value)
	}
	return role, nil
}
