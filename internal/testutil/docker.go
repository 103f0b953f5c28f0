// Copyright (c) 2024 Netskope, Inc. All rights reserved.

// Package testutil holds helpers shared by container-backed tests.
package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// detectReaperIssue checks if we need to disable the testcontainers reaper
// Returns true if reaper should be disabled (e.g., for Rancher Desktop)
func detectReaperIssue() bool {
	if v := os.Getenv("TESTCONTAINERS_RYUK_DISABLED"); v != "" {
		return v == "true"
	}

	dockerHost := os.Getenv("DOCKER_HOST")
	if strings.Contains(dockerHost, ".rd/docker.sock") {
		return true
	}
	if home := homeDir(); home != "" && dockerHost == "" {
		if _, err := os.Stat(home + "/.rd/docker.sock"); err == nil {
			return true
		}
	}
	return os.Getenv("DOCKER_CONTEXT") == "rancher-desktop"
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return os.Getenv("USERPROFILE") // Windows fallback
}

// RequireDocker skips t unless Docker tests are enabled, and points
// testcontainers at Rancher Desktop when that is what is running.
// optInEnv, when set, names an extra variable that must be "true".
func RequireDocker(t *testing.T, optInEnv string) {
	t.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "true" {
		t.Skip("Skipping Docker-based tests (SKIP_DOCKER_TESTS=true)")
	}
	if optInEnv != "" && os.Getenv(optInEnv) != "true" {
		t.Skipf("Skipping container test (set %s=true to run)", optInEnv)
	}

	if detectReaperIssue() {
		t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
		t.Log("Auto-detected Rancher Desktop or reaper issue - disabling testcontainers reaper")
	}

	if os.Getenv("DOCKER_HOST") == "" {
		if home := homeDir(); home != "" {
			rdSocket := home + "/.rd/docker.sock"
			if _, err := os.Stat(rdSocket); err == nil {
				t.Setenv("DOCKER_HOST", "unix://"+rdSocket)
			}
		}
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// SkipIfDockerMissing skips t when err says Docker is unavailable.
func SkipIfDockerMissing(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	if strings.Contains(err.Error(), "Docker not found") || strings.Contains(err.Error(), "rootless Docker") {
		t.Skipf("Skipping test: Docker not available: %v", err)
	}
}
