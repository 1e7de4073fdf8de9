package version

import "testing"

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}

	// Default value should be "unknown" until set by build
	if Version != "unknown" {
		// In tests, version should be "unknown" unless explicitly set via ldflags
		t.Logf("Version is: %s (expected 'unknown' or version set via ldflags)", Version)
	}
}

func TestString(t *testing.T) {
	if String() != Version {
		t.Errorf("without build metadata String() should equal Version, got %q", String())
	}

	oldCommit, oldTime := GitCommit, BuildTime
	defer func() { GitCommit, BuildTime = oldCommit, oldTime }()

	GitCommit = "3f6a1c2"
	if got := String(); got != Version+" (3f6a1c2)" {
		t.Errorf("unexpected String() with commit: %q", got)
	}
	BuildTime = "2026-08-24T10:00:00Z"
	if got := String(); got != Version+" (3f6a1c2, 2026-08-24T10:00:00Z)" {
		t.Errorf("unexpected String() with commit and time: %q", got)
	}
}

func TestBuildInfo(t *testing.T) {
	// Build info variables should exist (even if set to "unknown")
	if BuildTime == "" {
		t.Error("BuildTime should be initialized")
	}

	if GitCommit == "" {
		t.Error("GitCommit should be initialized")
	}
}
