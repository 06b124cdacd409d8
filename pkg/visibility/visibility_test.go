package visibility

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/errors"
)

func TestEnsureAgencyVisible(t *testing.T) {
	agencyID := uuid.New()
	other := uuid.New()

	cases := []struct {
		name     string
		scope    Scope
		resource uuid.UUID
		code     errors.Code
	}{
		{name: "same agency", scope: Scope{Role: enums.ActorRoleAgencyAdmin, AgencyID: &agencyID}, resource: agencyID},
		{name: "other agency hidden", scope: Scope{Role: enums.ActorRoleAgencyAdmin, AgencyID: &agencyID}, resource: other, code: errors.CodeNotFound},
		{name: "system without agency", scope: Scope{Role: enums.ActorRoleSystem}, resource: other},
		{name: "admin without agency", scope: Scope{Role: enums.ActorRoleAgencyAdmin}, resource: other, code: errors.CodeForbidden},
		{name: "unknown role", scope: Scope{Role: "staff", AgencyID: &agencyID}, resource: agencyID, code: errors.CodeForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := EnsureAgencyVisible(tc.scope, tc.resource)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("expected visible, got %v", err)
				}
				return
			}
			if !errors.IsCode(err, tc.code) {
				t.Fatalf("expected code %s, got %v", tc.code, err)
			}
		})
	}
}

func TestAgencyFilter(t *testing.T) {
	agencyID := uuid.New()
	filter, err := AgencyFilter(Scope{Role: enums.ActorRoleAgencyAdmin, AgencyID: &agencyID})
	if err != nil || filter == nil || *filter != agencyID {
		t.Fatalf("expected agency filter, got %v err=%v", filter, err)
	}
	filter, err = AgencyFilter(Scope{Role: enums.ActorRoleSystem})
	if err != nil || filter != nil {
		t.Fatalf("expected unrestricted system filter, got %v err=%v", filter, err)
	}
	if _, err := AgencyFilter(Scope{Role: enums.ActorRoleAgencyAdmin}); err == nil {
		t.Fatal("expected error for admin without agency")
	}
}
