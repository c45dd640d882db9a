package cli

import "testing"

func TestBuildVersion(t *testing.T) {
	origV, origC, origD := Version, Commit, BuildDate
	defer func() { Version, Commit, BuildDate = origV, origC, origD }()

	Version, Commit, BuildDate = "1.2.0", "abc123def012", "2026-08-30"
	if got := buildVersion(); got != "1.2.0 (abc123def012, 2026-08-30)" {
		t.Errorf("buildVersion() = %q", got)
	}

	Version, Commit, BuildDate = "1.2.0", "abc123def012", ""
	if got := buildVersion(); got != "1.2.0 (abc123def012)" {
		t.Errorf("buildVersion() = %q", got)
	}
}
