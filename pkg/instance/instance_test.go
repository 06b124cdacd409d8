package instance

import "testing"

func TestGetIDPrefersExplicitInstance(t *testing.T) {
	t.Setenv("HOSTNAME", "pod-7")
	t.Setenv("CARESTAFF_INSTANCE_ID", "api-1")
	if got := GetID(); got != "api-1" {
		t.Fatalf("expected api-1 got %q", got)
	}

	t.Setenv("CARESTAFF_INSTANCE_ID", "")
	if got := GetID(); got != "pod-7" {
		t.Fatalf("expected pod-7 got %q", got)
	}

	t.Setenv("HOSTNAME", "")
	if got := GetID(); got != "local" {
		t.Fatalf("expected local got %q", got)
	}
}
